package catalog

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/listopadhq/listopad/internal/domain"
)

// Duration — time.Duration c YAML-декодером из строк вида "72h".
type Duration time.Duration

// UnmarshalYAML реализует yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std возвращает стандартный time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Ошибки каталожного реестра.
var (
	// ErrDirectoryNotFound — каталог с таким slug не зарегистрирован.
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrDuplicateSlug — slug встречается в файле дважды.
	ErrDuplicateSlug = errors.New("duplicate directory slug")
)

// Directory — статическое описание одного каталога.
//
// Реестр задаёт, куда отправлять, каким коннектором и как переводить
// сырые статусы каталога в нашу таксономию. Меняется только через
// деплой нового файла: runtime-состояние живёт в БД, не здесь.
type Directory struct {
	// Slug — стабильный идентификатор каталога (yelp, gmb, ...).
	Slug string `yaml:"slug"`

	// Name — отображаемое имя.
	Name string `yaml:"name"`

	// SubmitURL — endpoint коннектора для отправки.
	SubmitURL string `yaml:"submit_url"`

	// Connector — тип коннектора ("http" по умолчанию).
	Connector string `yaml:"connector"`

	// RateLimitPerHour — лимит отправок в час (0 — без лимита).
	RateLimitPerHour int `yaml:"rate_limit_per_hour"`

	// ReviewSLA — сколько каталог обычно модерирует заявку.
	// После превышения sweeper переводит run в expired.
	ReviewSLA Duration `yaml:"review_sla"`

	// SupportsWebhook — присылает ли каталог статусы сам.
	// Без webhook'а судьбу заявки выясняет только повторная проверка.
	SupportsWebhook bool `yaml:"supports_webhook"`

	// RawStatusMap — перевод сырых статусов каталога в таксономию.
	RawStatusMap map[string]domain.Status `yaml:"raw_status_map"`
}

// Registry — реестр каталогов, загруженный из YAML файла.
type Registry struct {
	dirs  map[string]Directory
	order []string
}

// catalogFile — схема YAML файла.
type catalogFile struct {
	Directories []Directory `yaml:"directories"`
}

// Load читает и валидирует реестр из файла.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(raw)
}

// PathFromEnv возвращает путь к файлу реестра из CATALOG_PATH
// или значение по умолчанию.
func PathFromEnv() string {
	if path := os.Getenv("CATALOG_PATH"); path != "" {
		return path
	}
	return "catalog.yaml"
}

// Parse разбирает YAML содержимое реестра.
func Parse(raw []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}

	reg := &Registry{dirs: make(map[string]Directory, len(file.Directories))}
	for _, dir := range file.Directories {
		if dir.Slug == "" {
			return nil, errors.New("directory without slug")
		}
		if _, ok := reg.dirs[dir.Slug]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSlug, dir.Slug)
		}
		if dir.Connector == "" {
			dir.Connector = "http"
		}
		for raw, status := range dir.RawStatusMap {
			if !status.Valid() {
				return nil, fmt.Errorf("directory %q maps raw status %q to unknown status %q",
					dir.Slug, raw, status)
			}
		}
		reg.dirs[dir.Slug] = dir
		reg.order = append(reg.order, dir.Slug)
	}

	return reg, nil
}

// Get возвращает каталог по slug.
func (r *Registry) Get(slug string) (Directory, error) {
	dir, ok := r.dirs[slug]
	if !ok {
		return Directory{}, fmt.Errorf("%w: %q", ErrDirectoryNotFound, slug)
	}
	return dir, nil
}

// All возвращает каталоги в порядке файла.
func (r *Registry) All() []Directory {
	out := make([]Directory, 0, len(r.order))
	for _, slug := range r.order {
		out = append(out, r.dirs[slug])
	}
	return out
}

// Len возвращает количество каталогов.
func (r *Registry) Len() int {
	return len(r.dirs)
}

// MapRawStatus переводит сырой статус каталога в таксономию.
// Второе значение false, если маппинг не задан.
func (r *Registry) MapRawStatus(slug, rawStatus string) (domain.Status, bool) {
	dir, ok := r.dirs[slug]
	if !ok {
		return "", false
	}
	status, ok := dir.RawStatusMap[rawStatus]
	return status, ok
}
