// Command dashboard is a terminal stand-in for the browser UI: it drives the
// proxy's API through the cached dashboard client. Useful for poking at the
// cache and admission behavior without a browser.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/weatherdash/proxy/internal/cache"
	"github.com/weatherdash/proxy/internal/clock"
	"github.com/weatherdash/proxy/internal/config"
	"github.com/weatherdash/proxy/internal/dashboard"
	"github.com/weatherdash/proxy/internal/models"
	"github.com/weatherdash/proxy/internal/store"
)

// newForecastCache builds the client-side cache from the configured
// tunables. Split from main so the config-to-cache wiring is testable.
func newForecastCache(s store.RecordStore, clk clock.Clock, precision int, strictSkew bool) *cache.FreshnessCache {
	var opts []cache.Option
	if strictSkew {
		opts = append(opts, cache.WithStrictClockSkew())
	}
	return cache.New(s, clk, precision, opts...)
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Cache tunables default from the shared config so the CLI and the
	// proxy read the same config/{ENV_NAME}.yaml; flags override per run.
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	var (
		proxyURL   = flag.String("proxy", "http://localhost:5050", "base URL of the proxy")
		storePath  = flag.String("store", "dashboard.db", "path of the local record store")
		lat        = flag.Float64("lat", 43.651, "latitude")
		lon        = flag.Float64("lon", -79.347, "longitude")
		city       = flag.String("city", "", "look up city suggestions instead of a forecast")
		useCache   = flag.Bool("cache", true, "consult the local forecast cache")
		maxAge     = flag.Int("max-age", cfg.FreshnessMinutes, "cache freshness threshold in minutes")
		precision  = flag.Int("precision", cfg.CoordPrecision, "decimal places for coordinate cache keys")
		strictSkew = flag.Bool("strict-skew", cfg.StrictClockSkew, "treat future-dated cache records as stale")
		last       = flag.Bool("last", false, "load the last saved forecast and exit")
		summarize  = flag.Bool("summarize", false, "request an AI summary for the supplied reading")
		temp       = flag.Float64("temp", 0, "temperature for -summarize")
		feels      = flag.Float64("feels-like", 0, "feels-like temperature for -summarize")
		desc       = flag.String("description", "", "weather description for -summarize")
		wind       = flag.Float64("wind", 0, "wind speed for -summarize")
	)
	flag.Parse()

	bs, err := store.OpenBolt(*storePath)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer func() { _ = bs.Close() }()

	api := dashboard.NewAPIClient(*proxyURL, 30*time.Second)
	fc := newForecastCache(bs, clock.System{}, *precision, *strictSkew)
	dash := dashboard.NewClient(api, fc, *maxAge, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch {
	case *last:
		payload, ok := dash.LastForecast(ctx)
		if !ok {
			fmt.Println("No cached forecast found yet.")
			return
		}
		printJSON(payload)

	case *city != "":
		suggestions, err := dash.CitySuggestions(ctx, *city, 3)
		if err != nil {
			logger.Fatal("city suggestions", zap.Error(err))
		}
		for _, s := range suggestions {
			fmt.Printf("%s, %s %s (%.3f, %.3f)\n", s.Name, s.State, s.Country, s.Lat, s.Lon)
		}

	case *summarize:
		text, generated, err := dash.Summarize(ctx, models.WeatherReading{
			Temp:        *temp,
			FeelsLike:   *feels,
			Description: *desc,
			WindSpeed:   *wind,
		})
		if err != nil {
			logger.Fatal("summarize", zap.Error(err))
		}
		if !generated {
			fmt.Println("Weather unchanged; summary not regenerated.")
			return
		}
		fmt.Println(text)

	default:
		payload, cached, err := dash.Forecast(ctx, *lat, *lon, *useCache)
		if err != nil {
			logger.Fatal("forecast", zap.Error(err))
		}
		if cached {
			fmt.Println("(served from cache)")
		}
		printJSON(payload)
	}
}

func printJSON(raw json.RawMessage) {
	var buf map[string]interface{}
	if err := json.Unmarshal(raw, &buf); err != nil {
		fmt.Println(string(raw))
		return
	}
	pretty, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(string(pretty))
}
