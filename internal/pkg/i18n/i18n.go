package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*/notifications.yaml
var embedded embed.FS

const DefaultLocale = "en"

type Message struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

type Translations map[string]Message

var (
	locales = make(map[string]Translations)
	mu      sync.RWMutex
)

func init() {
	if err := load(embedded, "locales"); err != nil {
		panic(fmt.Sprintf("i18n: load embedded locales: %v", err))
	}
}

// LoadTranslations reads <localePath>/<locale>/notifications.yaml for every
// locale directory, overriding embedded entries with the same key.
func LoadTranslations(localePath string) error {
	return load(os.DirFS(localePath), ".")
}

func load(fsys fs.FS, root string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		locale := entry.Name()
		filePath := path.Join(root, locale, "notifications.yaml")

		data, err := fs.ReadFile(fsys, filePath)
		if err != nil {
			continue
		}

		var config struct {
			Notifications Translations `yaml:"NOTIFICATIONS"`
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("failed to parse %s: %w", filePath, err)
		}

		if locales[locale] == nil {
			locales[locale] = make(Translations)
		}
		for key, msg := range config.Notifications {
			locales[locale][key] = msg
		}
	}
	return nil
}

func lookup(locale, key string) (Message, bool) {
	mu.RLock()
	defer mu.RUnlock()

	if trans, ok := locales[locale]; ok {
		if msg, ok := trans[key]; ok {
			return msg, true
		}
	}
	if locale != DefaultLocale {
		if trans, ok := locales[DefaultLocale]; ok {
			if msg, ok := trans[key]; ok {
				return msg, true
			}
		}
	}
	return Message{}, false
}

// Render returns the title and body for key with {name} placeholders
// replaced from vars. Unknown keys render as the key itself.
func Render(locale, key string, vars map[string]string) (string, string) {
	msg, ok := lookup(locale, key)
	if !ok {
		return key, key
	}

	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(msg.Title), r.Replace(msg.Body)
}
