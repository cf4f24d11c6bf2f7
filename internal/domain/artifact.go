package domain

import (
	"fmt"
	"sort"
)

// Artifact — ссылка на сгенерированное изображение.
//
// URL может быть временным (внешняя система выдаёт истекающие ссылки),
// поэтому артефакты не хранятся дольше срока жизни ссылки.
type Artifact struct {
	// URL — локатор изображения во внешней системе.
	URL string `json:"url"`

	// Prompt — промпт, из которого изображение было сгенерировано.
	Prompt string `json:"prompt"`

	// Position — структурная позиция, зафиксированная в момент генерации.
	// Используется для стабильной сортировки независимо от порядка
	// появления в DOM внешней системы.
	Position int `json:"position"`
}

// SortArtifacts сортирует артефакты по зафиксированной позиции.
//
// Итоговый порядок всегда соответствует порядку промптов, даже если
// внешняя система вставляла результаты в другом порядке.
func SortArtifacts(artifacts []Artifact) {
	sort.SliceStable(artifacts, func(i, j int) bool {
		return artifacts[i].Position < artifacts[j].Position
	})
}

// DownloadTask — задача очереди скачивания: артефакт плюс целевое имя файла.
//
// После постановки в очередь не изменяется.
type DownloadTask struct {
	Artifact Artifact `json:"artifact"`

	// Filename — имя файла на диске.
	Filename string `json:"filename"`
}

// DownloadFilename формирует имя файла вида "{prefix}_{NNN}.png".
//
// Индекс нумеруется с единицы и дополняется нулями до трёх знаков,
// порядок соответствует порядку постановки в очередь.
func DownloadFilename(prefix string, index int) string {
	return fmt.Sprintf("%s_%03d.png", prefix, index+1)
}
