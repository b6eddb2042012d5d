package config

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

type App struct {
	Name       string
	Version    string
	GitHash    string
	LongName   string
	InstanceId string
}

type Config struct {
	App        App        `yaml:"-"`
	Capture    Capture    `yaml:"capture,omitempty"`
	Recorder   Recorder   `yaml:"recorder,omitempty"`
	Upload     Upload     `yaml:"upload,omitempty"`
	Store      Store      `yaml:"store,omitempty"`
	PubSub     PubSub     `yaml:"pubsub,omitempty"`
	HTTP       HTTP       `yaml:"http,omitempty"`
	Prometheus Prometheus `yaml:"prometheus,omitempty"`
	Stats      Stats      `yaml:"stats,omitempty"`
	Log        LogConfig  `yaml:"log"`
}

func (cfg *Config) GetDefaults() *Config {
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets the default values
func (cfg *Config) SetDefaults() {
	if cfg.App.Name == "" {
		var err error
		if cfg.App.Name, err = os.Executable(); err != nil {
			log.Error(err)
			cfg.App.Name = "unknown"
		}
	}

	cfg.Capture.Width = 1280
	cfg.Capture.Height = 720
	cfg.Capture.Audio = true
	cfg.PubSub.Channels = Channels{
		Subscribe: "to-" + cfg.App.Name,
		Publish:   "from-" + cfg.App.Name,
	}
	cfg.PubSub.Adapter = "redis"
	cfg.PubSub.Adapters = make(map[string]interface{})
	cfg.PubSub.Adapters["redis"] = &Redis{
		Address:  ":6379",
		Network:  "tcp",
		Password: "",
	}
	cfg.Upload.Adapter = "worker"
	cfg.Upload.Adapters = make(map[string]interface{})
	cfg.Upload.Adapters["worker"] = &Worker{
		BaseURL: "http://localhost:8787",
		Timeout: 2 * time.Minute,
	}
	cfg.Store.URI = "mongodb://localhost:27017"
	cfg.Store.Database = "clips"
	cfg.HTTP = HTTP{
		Enable: false,
		Port:   8080,
	}
	cfg.Prometheus = Prometheus{
		Enable:        false,
		ListenAddress: "127.0.0.1:3200",
	}
	cfg.Stats = Stats{
		Enable:   false,
		FileMode: "0600",
	}
}

type Capture struct {
	Width  int  `yaml:"width,omitempty"`
	Height int  `yaml:"height,omitempty"`
	Audio  bool `yaml:"audio,omitempty"`
}

type Recorder struct {
	// MimeType forces a codec pair instead of the preference list.
	MimeType string `yaml:"mimeType,omitempty"`
}

type Upload struct {
	Adapter  string `yaml:"adapter,omitempty"`
	Adapters map[string]interface{}
}

type Worker struct {
	BaseURL string        `yaml:"baseUrl,omitempty" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

type R2 struct {
	Endpoint        string `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket,omitempty" mapstructure:"bucket"`
	AccessKeyID     string `yaml:"accessKeyId,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secretAccessKey,omitempty" mapstructure:"secret_access_key"`
	PublicBaseURL   string `yaml:"publicBaseUrl,omitempty" mapstructure:"public_base_url"`
}

type Store struct {
	URI      string `yaml:"uri,omitempty"`
	Database string `yaml:"database,omitempty"`
}

type Redis struct {
	Address  string `yaml:"address,omitempty"`
	Network  string `yaml:"network,omitempty"`
	Password string `yaml:"password,omitempty"`
}

type PubSub struct {
	Channels Channels `yaml:"channels,omitempty"`
	Adapter  string   `yaml:"adapter,omitempty"`
	Adapters map[string]interface{}
}

type Channels struct {
	Subscribe string `yaml:"subscribe,omitempty"`
	Publish   string `yaml:"publish,omitempty"`
}

type HTTP struct {
	Enable bool `yaml:"enable,omitempty"`
	Port   int  `yaml:"port,omitempty"`
}

type Prometheus struct {
	Enable        bool   `yaml:"enable,omitempty"`
	ListenAddress string `yaml:"listenAddress,omitempty"`
}

type Stats struct {
	Enable    bool   `yaml:"enable,omitempty"`
	Directory string `yaml:"directory,omitempty"`
	FileMode  string `yaml:"fileMode,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}
