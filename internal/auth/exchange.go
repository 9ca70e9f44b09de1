package auth

import (
	"log/slog"
	"sync"
	"time"
)

// PendingExchange はログイン試行ごとの一時的なPKCE/stateハンドシェイク状態を表す。
// リダイレクト発行時に登録され、対応するコールバック到着時にちょうど1回消費される。
// 永続化はされず、プロセス内の共有状態として保持される。
type PendingExchange struct {
	State        string
	CodeVerifier string
	Provider     string
	CreatedAt    time.Time
}

// ExchangeRegistry は進行中のログイン試行のPendingExchangeをstate値で管理する。
// 並行するログイン開始とコールバック完了からアクセスされるためミューテックスで保護する。
// 同一stateを消費しようとする2つのコールバックの競合は「先着が勝つ」で解決し、
// 消費の検査と削除は原子的に行う。
// 放置されたログイン試行による無制限の成長を防ぐため、TTL超過エントリを
// バックグラウンドで掃除する。
type ExchangeRegistry struct {
	mu      sync.Mutex
	pending map[string]*PendingExchange
	ttl     time.Duration

	stopCh chan struct{}
	now    func() time.Time
}

// NewExchangeRegistry は新しいExchangeRegistryを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewExchangeRegistry(ttl time.Duration) *ExchangeRegistry {
	r := &ExchangeRegistry{
		pending: make(map[string]*PendingExchange),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	go r.sweepLoop()

	return r
}

// Put はPendingExchangeをstate値で登録する。
func (r *ExchangeRegistry) Put(p *PendingExchange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[p.State] = p
}

// Consume はstateに対応するエントリを原子的に取り出して削除する。
// 見つからない場合、記録されたプロバイダーと一致しない場合、
// TTLを超過している場合はnilを返す。
// いずれの場合もエントリは削除され、同一stateでの再試行は必ず失敗する。
func (r *ExchangeRegistry) Consume(state, provider string) *PendingExchange {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[state]
	if !ok {
		return nil
	}
	delete(r.pending, state)

	if p.Provider != provider {
		return nil
	}
	if r.now().Sub(p.CreatedAt) > r.ttl {
		return nil
	}

	return p
}

// Len は現在登録されているエントリ数を返す。テストおよびメトリクス用。
func (r *ExchangeRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (r *ExchangeRegistry) Stop() {
	close(r.stopCh)
}

// sweepLoop はTTLを超過したエントリを定期的に削除する。
// Consume時にもTTLを検査するため、掃除間隔の遅延が正しさに影響することはない。
func (r *ExchangeRegistry) sweepLoop() {
	ticker := time.NewTicker(r.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep はTTLを超過したエントリを削除する。
func (r *ExchangeRegistry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var removed int
	for state, p := range r.pending {
		if now.Sub(p.CreatedAt) > r.ttl {
			delete(r.pending, state)
			removed++
		}
	}

	if removed > 0 {
		slog.Info("swept abandoned login attempts",
			slog.Int("removed", removed),
			slog.Int("remaining", len(r.pending)),
		)
	}
}
