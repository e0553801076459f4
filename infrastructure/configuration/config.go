package configuration

import (
	"fmt"
	"os"
	"strconv"

	"postpilot/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App                    `json:"app"`
	Database    Database               `json:"database"`
	RedisClient RedisClient            `json:"redisClient"`
	Pubsub      Pubsub                 `json:"pubsub"`
	ServiceBus  ServiceBus             `json:"serviceBus"`
	Vault       Vault                  `json:"vault"`
	Queue       Queue                  `json:"queue"`
	OAuth       map[string]OAuthClient `json:"oauth"`
}

type App struct {
	Port      int    `json:"port"`
	SecretKey string `json:"secretKey"`
	BaseURL   string `json:"baseURL"`
}

type Database struct {
	Psql  Db `json:"psql"`
	Mongo Db `json:"mongo"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
	Topic     string `json:"topic"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
	Queue     string `json:"queue"`
}

// Vault holds the token encryption secret. Falls back to App.SecretKey so a
// single-secret deployment keeps working.
type Vault struct {
	Secret string `json:"secret"`
}

// Queue holds worker tuning knobs. Zero values are filled with defaults.
type Queue struct {
	PublishIntervalSeconds int `json:"publishIntervalSeconds"`
	RefreshIntervalSeconds int `json:"refreshIntervalSeconds"`
	BatchSize              int `json:"batchSize"`
	MaxRetries             int `json:"maxRetries"`
	RefreshBufferMinutes   int `json:"refreshBufferMinutes"`
	JobPauseSeconds        int `json:"jobPauseSeconds"`
}

// OAuthClient holds third-party platform OAuth client credentials.
type OAuthClient struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectURI"`
}

var C Config

func init() {
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	initQueue(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.User == "" {
		C.Database.Psql.User = os.Getenv("DB_USER")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}
	if C.Database.Psql.Port == "" {
		if v := os.Getenv("DB_PORT"); v != "" {
			C.Database.Psql.Port = v
		} else {
			C.Database.Psql.Port = "5432"
		}
	}
	if C.Database.Mongo.Host == "" {
		C.Database.Mongo.Host = os.Getenv("MONGO_HOST")
	}
	if C.Database.Mongo.Port == "" {
		C.Database.Mongo.Port = os.Getenv("MONGO_PORT")
	}
	if C.Database.Mongo.Name == "" {
		C.Database.Mongo.Name = os.Getenv("MONGO_DB_NAME")
	}
}

func initApp(C *Config) {
	// SECRET_KEY from the environment wins over the config file.
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10080
	}
	if C.App.BaseURL == "" {
		if v := os.Getenv("APP_BASE_URL"); v != "" {
			C.App.BaseURL = v
		} else {
			C.App.BaseURL = fmt.Sprintf("http://localhost:%d", C.App.Port)
		}
	}
	if v := os.Getenv("TOKEN_VAULT_SECRET"); v != "" {
		C.Vault.Secret = v
	}
	if C.Vault.Secret == "" {
		C.Vault.Secret = C.App.SecretKey
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; state tokens and API auth will fail. Provide SECRET_KEY via environment.")
	}
}

func initQueue(C *Config) {
	if C.Queue.PublishIntervalSeconds == 0 {
		C.Queue.PublishIntervalSeconds = 15
	}
	if C.Queue.RefreshIntervalSeconds == 0 {
		C.Queue.RefreshIntervalSeconds = 60
	}
	if C.Queue.BatchSize == 0 {
		C.Queue.BatchSize = 10
	}
	if C.Queue.MaxRetries == 0 {
		C.Queue.MaxRetries = 3
	}
	if C.Queue.RefreshBufferMinutes == 0 {
		C.Queue.RefreshBufferMinutes = 60
	}
	if C.Queue.JobPauseSeconds == 0 {
		C.Queue.JobPauseSeconds = 2
	}
}
