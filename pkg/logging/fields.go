package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Component field helpers for common pipeline stages
func Component(name string) Field {
	return String("component", name)
}

func EntityID(id string) Field {
	return String("entity_id", id)
}

func EntityType(t string) Field {
	return String("entity_type", t)
}

func Tick(n uint64) Field {
	return Field{Key: "tick", Value: n}
}

func SeverityField(s string) Field {
	return String("severity", s)
}

func Category(c string) Field {
	return String("category", c)
}

func AttackType(t string) Field {
	return String("attack_type", t)
}

func Probability(p float64) Field {
	return Float64("probability", p)
}

func Score(s float64) Field {
	return Float64("score", s)
}

func Count(key string, n int) Field {
	return Int(key, n)
}
