package page

import (
	"context"
	"fmt"
)

// Locator — упорядоченный список стратегий поиска одного и того же
// элемента. Стратегии пробуются по очереди, выигрывает первая успешная.
//
// Внешний интерфейс не контролируется нами и периодически меняет
// разметку, поэтому списки селекторов выносятся в конфигурацию.
type Locator struct {
	// Name — имя элемента для логов и ошибок.
	Name string `yaml:"name"`

	// Selectors — CSS-селекторы в порядке приоритета.
	Selectors []string `yaml:"selectors"`
}

// Find возвращает первый найденный элемент, перебирая селекторы по порядку.
func (l Locator) Find(ctx context.Context, d Driver) (Element, error) {
	for _, sel := range l.Selectors {
		el, err := d.Find(ctx, sel)
		if err == nil {
			return el, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoElement, l.Name)
}

// FindAll возвращает все элементы первого сработавшего селектора.
func (l Locator) FindAll(ctx context.Context, d Driver) ([]Element, error) {
	for _, sel := range l.Selectors {
		els, err := d.FindAll(ctx, sel)
		if err == nil && len(els) > 0 {
			return els, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoElement, l.Name)
}

// Locators — полный набор локаторов, которыми оперирует workflow.
type Locators struct {
	// PromptInput — поле ввода промпта.
	PromptInput Locator `yaml:"prompt_input"`

	// AttachButton — кнопка прикрепления референсного изображения.
	AttachButton Locator `yaml:"attach_button"`

	// FileInput — input, появляющийся после клика по AttachButton.
	FileInput Locator `yaml:"file_input"`

	// ChainButton — кнопка "использовать результат в следующем шаге".
	ChainButton Locator `yaml:"chain_button"`

	// GenerateButton — кнопка запуска генерации.
	GenerateButton Locator `yaml:"generate_button"`

	// ArtifactImage — сгенерированные изображения.
	ArtifactImage Locator `yaml:"artifact_image"`

	// OverlayDismiss — закрытие модального оверлея после прикрепления.
	OverlayDismiss Locator `yaml:"overlay_dismiss"`
}

// DefaultLocators возвращает локаторы, подходящие целевому интерфейсу
// на момент написания. Переопределяются в конфиге агента.
func DefaultLocators() Locators {
	return Locators{
		PromptInput: Locator{
			Name:      "prompt input",
			Selectors: []string{"textarea[data-testid='prompt-input']", "textarea[placeholder*='prompt']", "form textarea"},
		},
		AttachButton: Locator{
			Name:      "attach button",
			Selectors: []string{"button[data-testid='attach']", "button[aria-label*='attach']", "button[aria-label*='image']"},
		},
		FileInput: Locator{
			Name:      "file input",
			Selectors: []string{"input[type='file']"},
		},
		ChainButton: Locator{
			Name:      "chain button",
			Selectors: []string{"button[data-testid='use-as-reference']", "button[aria-label*='reference']"},
		},
		GenerateButton: Locator{
			Name:      "generate button",
			Selectors: []string{"button[data-testid='generate']", "button[type='submit']"},
		},
		ArtifactImage: Locator{
			Name:      "artifact image",
			Selectors: []string{"img[data-testid='generated-image']", "figure img[src*='blob']", "main img[alt*='Generated']"},
		},
		OverlayDismiss: Locator{
			Name:      "overlay dismiss",
			Selectors: []string{"button[data-testid='close-dialog']", "div[role='dialog'] button[aria-label='Close']"},
		},
	}
}
