// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス記録のインターフェース。
// サービス層・ミドルウェア・ワーカーから利用する。
type Recorder interface {
	RecordPostCreated()
	RecordPostDeleted()
	RecordCommentCreated()
	RecordLikeToggled(result string)
	RecordCountersRepaired(count int64)
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	postsCreated     prometheus.Counter
	postsDeleted     prometheus.Counter
	commentsCreated  prometheus.Counter
	likesToggled     *prometheus.CounterVec
	countersRepaired prometheus.Counter
	httpStatus       *prometheus.CounterVec
	requestDuration  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialfeed_posts_created_total",
			Help: "作成された投稿の合計数",
		}),
		postsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialfeed_posts_deleted_total",
			Help: "削除された投稿の合計数",
		}),
		commentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialfeed_comments_created_total",
			Help: "作成されたコメントの合計数",
		}),
		likesToggled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialfeed_likes_toggled_total",
			Help: "結果別のいいねトグル数",
		}, []string{"result"}),
		countersRepaired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialfeed_like_counters_repaired_total",
			Help: "監査ジョブが修正したいいねカウンタの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialfeed_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "socialfeed_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.postsCreated,
		c.postsDeleted,
		c.commentsCreated,
		c.likesToggled,
		c.countersRepaired,
		c.httpStatus,
		c.requestDuration,
	)

	return c
}

// RecordPostCreated は投稿作成を記録する。
func (c *Collector) RecordPostCreated() {
	c.postsCreated.Inc()
}

// RecordPostDeleted は投稿削除を記録する。
func (c *Collector) RecordPostDeleted() {
	c.postsDeleted.Inc()
}

// RecordCommentCreated はコメント作成を記録する。
func (c *Collector) RecordCommentCreated() {
	c.commentsCreated.Inc()
}

// RecordLikeToggled はいいねトグルを結果（liked/unliked）別に記録する。
func (c *Collector) RecordLikeToggled(result string) {
	c.likesToggled.WithLabelValues(result).Inc()
}

// RecordCountersRepaired は修正したカウンタ数を記録する。
func (c *Collector) RecordCountersRepaired(count int64) {
	c.countersRepaired.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDuration.Observe(duration.Seconds())
}

// NopRecorder は何も記録しないRecorder。Recorder未指定時の既定値として使う。
type NopRecorder struct{}

func (NopRecorder) RecordPostCreated()                  {}
func (NopRecorder) RecordPostDeleted()                  {}
func (NopRecorder) RecordCommentCreated()               {}
func (NopRecorder) RecordLikeToggled(string)            {}
func (NopRecorder) RecordCountersRepaired(int64)        {}
func (NopRecorder) RecordHTTPStatus(int)                {}
func (NopRecorder) RecordRequestDuration(time.Duration) {}

// OrNop はrがnilの場合にNopRecorderを返す。
func OrNop(r Recorder) Recorder {
	if r == nil {
		return NopRecorder{}
	}
	return r
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = NopRecorder{}
)
