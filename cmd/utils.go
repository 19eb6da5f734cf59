package cmd

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kurtheiz/agistme/pkg/cache"
	"github.com/kurtheiz/agistme/pkg/client"
	"github.com/kurtheiz/agistme/pkg/config"
	"github.com/kurtheiz/agistme/pkg/loader"
	"github.com/kurtheiz/agistme/pkg/profile"
	"github.com/kurtheiz/agistme/pkg/search"
	"github.com/kurtheiz/agistme/pkg/searchtoken"
	"github.com/kurtheiz/agistme/pkg/session"
	"github.com/kurtheiz/agistme/pkg/storage"
)

// app bundles what most commands need: configuration, the cache backend
// and the remote API client.
type app struct {
	cfg     *config.Config
	backend cache.Backend
	api     *client.Client
}

// loadApp loads the configuration and opens the cache backend and client.
// Callers must Close the result.
func loadApp(configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	backend, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}

	api, err := client.New(cfg.ClientOptions())
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("creating client: %w", err)
	}

	return &app{cfg: cfg, backend: backend, api: api}, nil
}

// openBackend opens the cache backend selected by the configuration.
func openBackend(cfg *config.Config) (cache.Backend, error) {
	switch cfg.Cache.Backend {
	case config.BackendMemory:
		return cache.NewMemoryBackend(), nil
	default:
		backend, err := storage.OpenDir(cfg.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		return backend, nil
	}
}

func (a *app) Close() error {
	return a.backend.Close()
}

// queryPolicy is the result cache policy from the configuration.
func (a *app) queryPolicy() cache.Policy {
	return cache.Policy{FreshFor: a.cfg.Cache.FreshFor.Duration, RetainFor: a.cfg.Cache.RetainFor.Duration}
}

func (a *app) newStore() *session.Store {
	d := a.cfg.Cache.LastSearchFor.Duration
	return session.NewStore(cache.New(a.backend, a.queryPolicy()),
		session.WithLastSearchPolicy(cache.Policy{FreshFor: d, RetainFor: d}))
}

func (a *app) newLoader() *loader.Loader {
	return loader.New(a.api, a.newStore())
}

func (a *app) savedSearches() *profile.SavedSearches {
	return profile.NewSavedSearches(a.api)
}

// criteriaFlags are the search filters shared by search, token encode and
// saved save. They map one to one onto the search query parameters.
func criteriaFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "loc",
			Usage: "Location: a state code (NSW) or type|id|name|postcode|state|region|geohash. Can be used multiple times",
		},
		&cli.StringSliceFlag{
			Name:  "suburb",
			Usage: "Suburb by centre point: name|postcode|state|lat|lng. Can be used multiple times",
		},
		&cli.IntFlag{
			Name:  "radius",
			Usage: "Search radius in km around a suburb",
		},
		&cli.StringSliceFlag{
			Name:  "paddock",
			Usage: "Paddock type (private, shared, group). Can be used multiple times",
		},
		&cli.StringSliceFlag{
			Name:  "care",
			Usage: "Care type (self, part, full). Can be used multiple times",
		},
		&cli.StringSliceFlag{
			Name:  "facility",
			Usage: "Required facility. Can be used multiple times",
		},
		&cli.IntFlag{
			Name:  "max-price",
			Usage: "Maximum weekly price",
		},
		&cli.IntFlag{
			Name:  "min-spaces",
			Usage: "Minimum available spaces",
		},
		&cli.BoolFlag{
			Name:  "arena",
			Usage: "Require an arena",
		},
		&cli.BoolFlag{
			Name:  "round-yard",
			Usage: "Require a round yard",
		},
	}
}

// criteriaFromFlags parses the criteria flags through search.ParseParams so
// the CLI and the local API validate filters the same way.
func criteriaFromFlags(c *cli.Command) (search.Criteria, error) {
	q := url.Values{}
	q[search.ParamLocation] = c.StringSlice("loc")
	for _, s := range c.StringSlice("suburb") {
		loc, err := search.ParseSuburb(s)
		if err != nil {
			return search.Criteria{}, fmt.Errorf("invalid search: %w", err)
		}
		q.Add(search.ParamLocation, loc.String())
	}
	q[search.ParamPaddock] = c.StringSlice("paddock")
	q[search.ParamCare] = c.StringSlice("care")
	q[search.ParamFacility] = c.StringSlice("facility")
	for flag, param := range map[string]string{
		"radius":     search.ParamRadius,
		"max-price":  search.ParamMaxPrice,
		"min-spaces": search.ParamMinSpaces,
	} {
		if c.IsSet(flag) {
			q.Set(param, strconv.Itoa(c.Int(flag)))
		}
	}
	if c.Bool("arena") {
		q.Set(search.ParamArena, "true")
	}
	if c.Bool("round-yard") {
		q.Set(search.ParamRoundYard, "true")
	}

	criteria, err := search.ParseParams(q)
	if err != nil {
		return search.Criteria{}, fmt.Errorf("invalid search: %w", err)
	}
	return criteria, nil
}

// tokenFromFlags returns the --token flag, or the token of the criteria
// flags when it is not set.
func tokenFromFlags(c *cli.Command) (string, error) {
	if token := strings.TrimSpace(c.String("token")); token != "" {
		return token, nil
	}
	criteria, err := criteriaFromFlags(c)
	if err != nil {
		return "", err
	}
	return searchtoken.Encode(criteria), nil
}

// requireArgs fails unless the command got exactly n arguments.
func requireArgs(c *cli.Command, n int, usage string) error {
	if c.Args().Len() != n {
		return fmt.Errorf("usage: %s %s", c.Name, usage)
	}
	return nil
}

// withApp runs fn with a loaded app and closes it afterwards.
func withApp(c *cli.Command, fn func(a *app) error) error {
	a, err := loadApp(c.String("config"))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Printf("Warning: failed to close cache: %v\n", err)
		}
	}()
	return fn(a)
}
