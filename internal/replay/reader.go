package replay

import (
	"bufio"
	"os"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"tick_trader/internal/models"
)

// ReadTicks читает записанный поток тиков из JSONL-файла: один тик на
// строку, в том порядке, в котором их отдавал стример. Пустые строки
// пропускаются.
func ReadTicks(path string) ([]models.Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open ticks file")
	}
	defer func() {
		_ = f.Close()
	}()

	var out []models.Tick
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var t models.Tick
		if err := sonic.Unmarshal(raw, &t); err != nil {
			return nil, errors.Wrapf(err, "ticks file line %d", line)
		}
		if t.Symbol == "" || t.Price <= 0 {
			return nil, errors.Errorf("ticks file line %d: bad tick %+v", line, t)
		}
		out = append(out, t)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "scan ticks file")
	}
	return out, nil
}
