// Package controller управляет жизненным циклом генерационного прогона.
//
// Controller — владелец единственного RunState. Состояние не разделяется
// с другими контекстами: управление приходит командами, наружу уходят
// только события.
//
// Машина состояний:
//
//	IDLE --start--> RUNNING
//	RUNNING --pause--> PAUSED --resume--> RUNNING
//	RUNNING|PAUSED --stop--> STOPPED
//	RUNNING --все элементы обработаны--> COMPLETED
//
// Запуск поверх активного прогона перезапускает его: индекс сбрасывается
// в ноль, результаты очищаются.
//
// Отмена кооперативная: пауза и стоп наблюдаются между шагами, а во время
// паузы — с коротким интервалом опроса. Начатая внешняя операция всегда
// довыполняется до ближайшей контрольной точки.
package controller
