package feed

import "context"

// Feed 向资产仓库推送行情更新的数据源
//
// Exactly one feed is active at a time. Start may be called again after
// Stop returns. Stop is idempotent and guarantees that no further store
// updates are emitted once it returns.
type Feed interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
}
