// Package download реализует очередь скачивания артефактов.
//
// Очередь отвязана от генерации: она принимает готовый список
// артефактов и дренирует его независимо от состояния прогона.
// Одновременно активна максимум одна очередь — повторная постановка
// при активной очереди отклоняется, а не дополняет её.
//
// Отказ скачивания одного файла не прерывает дренаж: очередь
// продолжает со следующего элемента.
package download
