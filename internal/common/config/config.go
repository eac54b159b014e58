package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Service      string
	Port         string
	Environment  string
	ReadTimeout  int
	WriteTimeout int

	Database DatabaseConfig
	Storage  StorageConfig
	Services ServiceURLs
	Editor   EditorConfig
	Logging  LoggingConfig

	PalettePath string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Driver string // sqlite | postgres
	DSN    string
}

type StorageConfig struct {
	Root      string
	PublicURL string
}

type ServiceURLs struct {
	MapData   string
	Editor    string
	Converter string
}

type EditorConfig struct {
	WallWidth     float64
	WallHeight    float64
	HitRadius     float64
	PanelDebounce time.Duration
	RemoteTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

var defaultPorts = map[string]string{
	"gateway":   "3000",
	"converter": "3001",
	"mapdata":   "3002",
	"editor":    "3003",
}

// Load собирает конфигурацию сервиса из .env, необязательного YAML файла
// (INDOORMAP_CONFIG) и переменных окружения INDOORMAP_*.
func Load(service string) *Config {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, service)

	v.SetEnvPrefix("INDOORMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// PORT без префикса, как в docker-окружении
	if port := os.Getenv("PORT"); port != "" {
		v.Set("port", port)
	}

	if path := os.Getenv("INDOORMAP_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("[CONFIG] read %s: %v", path, err)
		}
	}

	return &Config{
		Service:      service,
		Port:         v.GetString("port"),
		Environment:  v.GetString("env"),
		ReadTimeout:  v.GetInt("read_timeout"),
		WriteTimeout: v.GetInt("write_timeout"),
		Database: DatabaseConfig{
			Driver: v.GetString("database.driver"),
			DSN:    v.GetString("database.dsn"),
		},
		Storage: StorageConfig{
			Root:      v.GetString("storage.root"),
			PublicURL: strings.TrimRight(v.GetString("storage.public_url"), "/"),
		},
		Services: ServiceURLs{
			MapData:   v.GetString("services.mapdata"),
			Editor:    v.GetString("services.editor"),
			Converter: v.GetString("services.converter"),
		},
		Editor: EditorConfig{
			WallWidth:     v.GetFloat64("editor.wall_width"),
			WallHeight:    v.GetFloat64("editor.wall_height"),
			HitRadius:     v.GetFloat64("editor.hit_radius_m"),
			PanelDebounce: v.GetDuration("editor.panel_debounce"),
			RemoteTimeout: v.GetDuration("editor.remote_timeout"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			File:   v.GetString("log.file"),
		},
		PalettePath: v.GetString("palette.path"),
		CORSOrigins: v.GetStringSlice("cors.origins"),
	}
}

func setDefaults(v *viper.Viper, service string) {
	port, ok := defaultPorts[service]
	if !ok {
		port = "3000"
	}
	v.SetDefault("port", port)
	v.SetDefault("env", "development")
	v.SetDefault("read_timeout", 10)
	v.SetDefault("write_timeout", 10)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/db/indoormap.db")

	v.SetDefault("storage.root", "data/objects")
	v.SetDefault("storage.public_url", "http://localhost:3002/files")

	v.SetDefault("services.mapdata", "http://localhost:3002")
	v.SetDefault("services.editor", "http://localhost:3003")
	v.SetDefault("services.converter", "http://localhost:3001")

	v.SetDefault("editor.wall_width", 0.3)
	v.SetDefault("editor.wall_height", 3.0)
	v.SetDefault("editor.hit_radius_m", 0.5)
	v.SetDefault("editor.panel_debounce", time.Second)
	v.SetDefault("editor.remote_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("palette.path", "")
	v.SetDefault("cors.origins", []string{})
}
