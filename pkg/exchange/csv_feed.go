package exchange

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/screener/pkg/core"
	"github.com/samber/lo"
	"github.com/xhit/go-str2duration/v2"
)

// csvHeaders is the column layout written by Record and read by CSVFeed
var csvHeaders = []string{"time", "open", "close", "low", "high", "volume"}

// CSVFeed replays recorded candles under the name of a live exchange.
// Files hold the base timeframe; other timeframes are resampled on demand.
type CSVFeed struct {
	name    core.ExchangeName
	candles map[string][]core.Candle
}

// NewCSVFeed loads every <SYMBOL>.csv file of dir
func NewCSVFeed(name core.ExchangeName, dir string) (*CSVFeed, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}

	feed := &CSVFeed{name: name, candles: make(map[string][]core.Candle, len(files))}
	for _, file := range files {
		symbol := strings.ToUpper(strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)))

		candles, err := readCandlesFile(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		feed.candles[symbol] = candles
	}

	if len(feed.candles) == 0 {
		return nil, fmt.Errorf("no csv files found in %s", dir)
	}

	return feed, nil
}

func readCandlesFile(file string) ([]core.Candle, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadCandlesCSV(f)
}

// ReadCandlesCSV parses candles ordered oldest first. The header line is
// optional; without it the default column order is assumed.
func ReadCandlesCSV(r io.Reader) ([]core.Candle, error) {
	lines, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	columns := parseHeaders(lines[0])
	if _, err := strconv.ParseInt(lines[0][0], 10, 64); err != nil {
		lines = lines[1:]
	}

	candles := make([]core.Candle, 0, len(lines))
	for i, line := range lines {
		candle, err := parseCandleFromLine(line, columns)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		candles = append(candles, candle)
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})

	return candles, nil
}

// parseHeaders maps column names to indexes, falling back to csvHeaders
// when the first line holds data
func parseHeaders(headers []string) map[string]int {
	columns := make(map[string]int, len(csvHeaders))

	if _, err := strconv.ParseInt(headers[0], 10, 64); err == nil {
		for index, header := range csvHeaders {
			columns[header] = index
		}
		return columns
	}

	for index, header := range headers {
		columns[strings.ToLower(strings.TrimSpace(header))] = index
	}
	return columns
}

func parseCandleFromLine(line []string, columns map[string]int) (core.Candle, error) {
	value := func(name string) (string, error) {
		index, ok := columns[name]
		if !ok || index >= len(line) {
			return "", fmt.Errorf("missing column %s", name)
		}
		return line[index], nil
	}

	raw, err := value("time")
	if err != nil {
		return core.Candle{}, err
	}
	timestamp, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return core.Candle{}, err
	}

	candle := core.Candle{Time: time.Unix(timestamp, 0).UTC()}
	fields := map[string]*float64{
		"open":   &candle.Open,
		"close":  &candle.Close,
		"low":    &candle.Low,
		"high":   &candle.High,
		"volume": &candle.Volume,
	}

	for name, target := range fields {
		raw, err := value(name)
		if err != nil {
			return core.Candle{}, err
		}
		if *target, err = strconv.ParseFloat(raw, 64); err != nil {
			return core.Candle{}, fmt.Errorf("%s: %w", name, err)
		}
	}

	return candle, nil
}

// WriteCandlesCSV writes candles with a header line, prices with precision decimals
func WriteCandlesCSV(w io.Writer, candles []core.Candle, precision int) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeaders); err != nil {
		return err
	}

	format := func(value float64) string {
		return strconv.FormatFloat(value, 'f', precision, 64)
	}

	for _, candle := range candles {
		record := []string{
			strconv.FormatInt(candle.Time.Unix(), 10),
			format(candle.Open),
			format(candle.Close),
			format(candle.Low),
			format(candle.High),
			format(candle.Volume),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// Resample groups oldest-first candles into timeframe buckets aligned to
// the epoch. The last bucket is kept even when incomplete, like the
// forming candle of a live feed.
func Resample(candles []core.Candle, timeframe string) ([]core.Candle, error) {
	period, err := str2duration.ParseDuration(timeframe)
	if err != nil {
		return nil, err
	}

	resampled := make([]core.Candle, 0, len(candles))
	for _, candle := range candles {
		bucket := candle.Time.Truncate(period)

		if n := len(resampled); n > 0 && resampled[n-1].Time.Equal(bucket) {
			last := &resampled[n-1]
			last.High = max(last.High, candle.High)
			last.Low = min(last.Low, candle.Low)
			last.Close = candle.Close
			last.Volume += candle.Volume
			continue
		}

		candle.Time = bucket
		resampled = append(resampled, candle)
	}

	return resampled, nil
}

// Name implements core.MarketFeed
func (c *CSVFeed) Name() core.ExchangeName {
	return c.name
}

// Candles implements core.MarketFeed with the last limit resampled candles
func (c *CSVFeed) Candles(_ context.Context, symbol, timeframe string, limit int) ([]core.Candle, error) {
	candles, ok := c.candles[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no recording for %s", core.ErrDataUnavailable, symbol)
	}

	resampled, err := Resample(candles, timeframe)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDataUnavailable, err)
	}

	if limit > 0 && len(resampled) > limit {
		resampled = resampled[len(resampled)-limit:]
	}
	return resampled, nil
}

// TopSymbols implements core.MarketFeed, ranking by recorded quote volume
func (c *CSVFeed) TopSymbols(_ context.Context, quote string, limit int) ([]string, error) {
	symbols := lo.Filter(lo.Keys(c.candles), func(symbol string, _ int) bool {
		return strings.HasSuffix(symbol, quote)
	})

	volume := lo.MapValues(c.candles, func(candles []core.Candle, _ string) float64 {
		return lo.SumBy(candles, func(candle core.Candle) float64 {
			return candle.Close * candle.Volume
		})
	})

	sort.Slice(symbols, func(i, j int) bool {
		if volume[symbols[i]] == volume[symbols[j]] {
			return symbols[i] < symbols[j]
		}
		return volume[symbols[i]] > volume[symbols[j]]
	})

	if limit > 0 && len(symbols) > limit {
		symbols = symbols[:limit]
	}
	return symbols, nil
}
