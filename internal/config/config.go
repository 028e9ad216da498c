package config

import (
	"errors"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Postgres  DBConfig
	Redis     RedisConfig
	S3        S3Config
	Logger    Logger
	Worker    WorkerConfig
	Pipeline  PipelineConfig
	Providers ProvidersConfig
	Publish   PublishConfig
}

type ServerConfig struct {
	AppVersion string
	Port       string
	Mode       string
}

type WorkerConfig struct {
	WorkerCount   int
	MaxCPUUsage   float64
	PollInterval  int
	MaxRetries    int
	BackoffBaseMS int
	BackoffCapMS  int
}

type PipelineConfig struct {
	WorkDir       string
	MinClipSec    int
	MaxClipSec    int
	TopClips      int
	FanOutLimit   int
	Language      string
	Style         string
	MusicBedPath  string
	KeepArtifacts bool
}

type ProvidersConfig struct {
	AIProvider   string
	AIBaseURL    string
	AIModel      string
	AITimeoutSec int

	TTSProvider   string
	TTSBaseURL    string
	TTSVoice      string
	TTSTimeoutSec int
}

type PublishConfig struct {
	DryRun            bool
	TimeoutSec        int
	YoutubeTokenFile  string
	YoutubeCategoryID string
	InstagramBaseURL  string
	InstagramToken    string
	TiktokBaseURL     string
	TiktokToken       string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	PgDriver string
}

type RedisConfig struct {
	RedisAddr     string
	RedisPassword string
	DB            int
	MinIdleConns  int
	PoolSize      int
	PoolTimeout   int
	UseTLS        bool
}

type S3Config struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	SourceBucket string
	ResultBucket string
}

type Logger struct {
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
	Encoding          string
	Level             string
}

func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.AddConfigPath(".")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFound) {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
