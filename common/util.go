package common

import (
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
)

// RunParallel takes multiple functions that each return an error,
// runs them in parallel, then aggregates any errors. It also reports
// how many of them failed.
func RunParallel(funcs ...func() error) (error, int) {
	var failed atomic.Int32
	p := pool.New().WithErrors()
	for _, fn := range funcs {
		fn := fn
		p.Go(func() error {
			err := fn()
			if err != nil {
				failed.Add(1)
			}
			return err
		})
	}
	err := p.Wait()
	return err, int(failed.Load())
}
