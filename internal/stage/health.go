package stage

import "fmt"

// Health is a handler's answer to "can you run a job right now".
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports name as ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports name as unable to run, with the reason in detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// Err converts an unready Health into an error; a ready one yields nil.
func (h Health) Err() error {
	if h.Ready {
		return nil
	}
	if h.Detail == "" {
		return fmt.Errorf("%s not ready", h.Name)
	}
	return fmt.Errorf("%s not ready: %s", h.Name, h.Detail)
}
