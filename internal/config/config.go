package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel string   `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	Board    Board    `yaml:"board"`
	Rewards  Rewards  `yaml:"rewards"`
	Training Training `yaml:"training"`
	Redis    Redis    `yaml:"redis"`
	Report   Report   `yaml:"report"`
	Render   Render   `yaml:"render"`
}

// Board - win-run-length 0 means a full row of size cells.
type Board struct {
	Size         int `yaml:"size" env:"BOARD_SIZE" env-default:"3"`
	WinRunLength int `yaml:"win-run-length" env:"BOARD_WIN_RUN_LENGTH" env-default:"0"`
}

type Rewards struct {
	Win  float64 `yaml:"win"`
	Loss float64 `yaml:"loss"`
	Draw float64 `yaml:"draw"`
	Step float64 `yaml:"step"`
}

type Training struct {
	Episodes    int     `yaml:"episodes" env:"TRAINING_EPISODES" env-default:"2000"`
	MaxSteps    int     `yaml:"max-steps" env-default:"100"`
	Eta         float64 `yaml:"eta"`
	Discount    float64 `yaml:"discount"`
	MaxEpsilon  float64 `yaml:"max-epsilon"`
	MinEpsilon  float64 `yaml:"min-epsilon"`
	Decay       float64 `yaml:"decay"`
	AvoidFilled bool    `yaml:"avoid-filled"`
	Seed        uint64  `yaml:"seed" env:"TRAINING_SEED" env-default:"0"`
	LogEvery    int     `yaml:"log-every" env-default:"500"`
	EvalGames   int     `yaml:"eval-games"`
}

type Redis struct {
	Enabled bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Host    string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port    string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

type Report struct {
	PlotPath string `yaml:"plot-path" env:"REPORT_PLOT_PATH" env-default:""`
	Window   int    `yaml:"window" env-default:"100"`
}

type Render struct {
	Mode string `yaml:"mode" env:"RENDER_MODE" env-default:"none"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

func Load(path string) (*Config, error) {
	// env-default overrides zero values, and zero is meaningful for these fields
	config := &Config{
		Rewards: Rewards{Win: 10, Loss: -10, Draw: 1, Step: -10},
		Training: Training{
			Eta:         0.7,
			Discount:    0.618,
			MaxEpsilon:  1,
			MinEpsilon:  0.01,
			Decay:       0.01,
			AvoidFilled: true,
			EvalGames:   100,
		},
	}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	return config, nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
