package marketdata

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	pumpPortalEndpoint = "wss://pumpportal.fun/api/data"
	reconnectDelay     = 5 * time.Second
	maxBufferedPairs   = 256
)

// PumpPortalStream subscribes to the PumpPortal new-token websocket feed
// and keeps a bounded in-memory buffer of recently created pairs. It is an
// optional, best-effort source: when the socket is down the buffer simply
// stops growing and HTTP listings remain the source of truth.
type PumpPortalStream struct {
	solPriceUsd float64

	mu      sync.RWMutex
	recent  []Pair
	stopped chan struct{}
	once    sync.Once
}

// NewPumpPortalStream creates a stream. solPriceUsd converts the feed's
// SOL-denominated figures into USD for filter comparison.
func NewPumpPortalStream(solPriceUsd float64) *PumpPortalStream {
	return &PumpPortalStream{
		solPriceUsd: solPriceUsd,
		stopped:     make(chan struct{}),
	}
}

type pumpPortalMessage struct {
	Mint                  string  `json:"mint"`
	Name                  string  `json:"name"`
	Symbol                string  `json:"symbol"`
	MarketCapSol          float64 `json:"marketCapSol"`
	VSolInBondingCurve    float64 `json:"vSolInBondingCurve"`
	VTokensInBondingCurve float64 `json:"vTokensInBondingCurve"`
	Pool                  string  `json:"pool"`
}

// Start runs the subscribe/read loop until Stop is called. Reconnects with
// a fixed delay on any failure.
func (s *PumpPortalStream) Start() {
	go func() {
		for {
			select {
			case <-s.stopped:
				return
			default:
			}

			if err := s.run(); err != nil {
				log.Warnf("pumpportal stream disconnected: %v, reconnecting in %v", err, reconnectDelay)
			}

			select {
			case <-s.stopped:
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()
}

// Stop terminates the stream.
func (s *PumpPortalStream) Stop() {
	s.once.Do(func() { close(s.stopped) })
}

func (s *PumpPortalStream) run() error {
	conn, _, err := websocket.DefaultDialer.Dial(pumpPortalEndpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := map[string]string{"method": "subscribeNewToken"}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	log.Info("pumpportal stream connected")

	for {
		select {
		case <-s.stopped:
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg pumpPortalMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Mint == "" {
			continue
		}

		s.add(Pair{
			TokenAddress: msg.Mint,
			Name:         msg.Name,
			Symbol:       msg.Symbol,
			ListedAt:     time.Now(),
			Liquidity:    msg.VSolInBondingCurve * s.solPriceUsd,
			MarketCap:    msg.MarketCapSol * s.solPriceUsd,
		})
	}
}

func (s *PumpPortalStream) add(p Pair) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = append(s.recent, p)
	if len(s.recent) > maxBufferedPairs {
		s.recent = s.recent[len(s.recent)-maxBufferedPairs:]
	}
}

// Recent returns buffered pairs no older than maxAge, newest last.
func (s *PumpPortalStream) Recent(maxAge time.Duration) []Pair {
	cutoff := time.Now().Add(-maxAge)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Pair, 0, len(s.recent))
	for _, p := range s.recent {
		if p.ListedAt.After(cutoff) {
			out = append(out, p)
		}
	}
	return out
}
