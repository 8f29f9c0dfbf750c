package stage

// Health is the result of a stage's readiness probe. Detail carries the
// failure reason and is empty while the stage is ready.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports a stage whose collaborators all answered.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports a stage that cannot run right now.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}
