package watch

import (
	"strconv"
	"strings"
	"sync"

	"xcarry/internal/application/port"
)

type Dir int

const (
	DirSame Dir = 0
	DirUp   Dir = +1
	DirDown Dir = -1
)

type pxState struct {
	str     string
	num     float64
	funding float64
	has     bool
	dir     Dir
}

// State 每个合约最近一次标记价格
type State struct {
	mu sync.Mutex

	order []string
	syms  map[string]*pxState
}

func NewState(symbols []string) *State {
	st := &State{syms: make(map[string]*pxState, len(symbols))}
	st.Track(symbols...)
	return st
}

// Track 加入需要跟踪的合约（展期后交割合约会变化）
func (s *State) Track(symbols ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sym := range symbols {
		u := strings.ToUpper(strings.TrimSpace(sym))
		if u == "" || s.syms[u] != nil {
			continue
		}
		s.order = append(s.order, u)
		s.syms[u] = &pxState{}
	}
}

func (s *State) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Apply 应用一次价格推送，返回价格是否变化
func (s *State) Apply(t port.Tick) bool {
	sym := strings.ToUpper(strings.TrimSpace(t.Symbol))
	price := strings.TrimSpace(t.PriceStr)
	if sym == "" || price == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ps := s.syms[sym]
	if ps == nil {
		return false
	}
	ps.funding = t.FundingRate
	if ps.str == price {
		return false
	}

	n, err := strconv.ParseFloat(price, 64)
	if err != nil || n <= 0 {
		return false
	}
	ps.str = price

	switch {
	case !ps.has:
		ps.dir = DirSame
	case n > ps.num:
		ps.dir = DirUp
	case n < ps.num:
		ps.dir = DirDown
	default:
		ps.dir = DirSame
	}
	ps.num = n
	ps.has = true
	return true
}

// Price 最近价格；尚未收到推送时 ok=false
func (s *State) Price(symbol string) (price float64, dir Dir, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.syms[strings.ToUpper(symbol)]
	if ps == nil || !ps.has {
		return 0, DirSame, false
	}
	return ps.num, ps.dir, true
}

// Funding 最近推送的实时资金费率（永续）
func (s *State) Funding(symbol string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.syms[strings.ToUpper(symbol)]
	if ps == nil || !ps.has {
		return 0, false
	}
	return ps.funding, true
}
