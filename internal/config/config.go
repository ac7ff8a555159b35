package config

type Config struct {
	Telegram         Telegram
	PostgresEndpoint string `env:"POSTGRES_ENDPOINT"`
	DefaultLimit     string `env:"DEFAULT_LIMIT" envDefault:"210.00"` // monthly limit assigned at registration
	Timezone         string `env:"TIMEZONE" envDefault:"Local"`
	StorageTimeout   int    `env:"STORAGE_TIMEOUT" envDefault:"10"` // seconds, bound on any single store call
}

type Telegram struct {
	Timeout int `env:"TIMEOUT" envDefault:"60"`
}
