package metrics

import (
	"math/big"
	"time"
)

type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
func (NoopRecorder) AddAmount(string, *big.Int)                              {}
