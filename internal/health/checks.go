package health

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ModelFile returns a Checker that verifies the model file named by path()
// exists and is a regular file. path is evaluated on every check so a
// reloaded configuration is picked up.
func ModelFile(path func() string) Checker {
	return Checker{
		Name: "model",
		Check: func(_ context.Context) error {
			p := path()
			if p == "" {
				return errors.New("no model configured")
			}
			fi, err := os.Stat(p)
			if err != nil {
				return fmt.Errorf("stat %q: %w", p, err)
			}
			if !fi.Mode().IsRegular() {
				return fmt.Errorf("%q is not a regular file", p)
			}
			return nil
		},
	}
}

// Pinger is implemented by connection pools such as *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping returns a Checker named name that pings p.
func Ping(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}
