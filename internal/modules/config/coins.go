package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"tick_trader/internal/models"
)

// CoinParamsSet — параметры всех торгуемых символов, читается один раз
// на старте и дальше только читается.
type CoinParamsSet map[string]models.CoinParams

// Symbols — неисключённые символы.
func (s CoinParamsSet) Symbols() []string {
	out := make([]string, 0, len(s))
	for sym, p := range s {
		if !p.Excluded {
			out = append(out, sym)
		}
	}
	return out
}

// LoadCoinParams читает файл коин-параметров, доливает дефолты варианта
// и валидирует инварианты. Дубль символа — ошибка загрузки.
func LoadCoinParams(path string) (CoinParamsSet, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read coin params %s", path)
	}

	var raw struct {
		Coins []models.CoinParams `mapstructure:"coins"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return nil, errors.Wrap(err, "unmarshal coin params")
	}
	if len(raw.Coins) == 0 {
		return nil, errors.Errorf("coin params %s: no coins", path)
	}

	out := make(CoinParamsSet, len(raw.Coins))
	for _, p := range raw.Coins {
		p = p.ApplyVariantDefaults()
		if err := p.Validate(); err != nil {
			return nil, errors.Wrap(err, "coin params")
		}
		if _, dup := out[p.Symbol]; dup {
			return nil, errors.Errorf("coin params: duplicate symbol %s", p.Symbol)
		}
		out[p.Symbol] = p
	}
	return out, nil
}
