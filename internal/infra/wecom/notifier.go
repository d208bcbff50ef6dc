package wecom

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"market_sentry/internal/domain"
	"market_sentry/internal/infra"
)

// ErrNotConfigured is returned when no webhook URL is set.
var ErrNotConfigured = errors.New("wecom webhook url not configured")

// Notifier delivers rendered text messages to a WeCom (企业微信) group
// robot webhook. Delivery is fire-and-forget from the pipeline's point of
// view: failures are logged by the caller and never retried here.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	metrics    *infra.Metrics
}

// NewNotifier creates a notifier for the given webhook URL.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		metrics: infra.GlobalMetrics,
	}
}

// textMessage is the WeCom robot text payload.
type textMessage struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

// SendAlert renders and delivers a volatility alert.
func (n *Notifier) SendAlert(alert domain.Alert) error {
	return n.send(FormatAlert(alert))
}

// SendStartup delivers the startup test message.
func (n *Notifier) SendStartup() error {
	return n.send("🔔 市场波动监控系统测试\n系统启动成功，监控服务正常运行中...")
}

// SendShutdown delivers the shutdown notice.
func (n *Notifier) SendShutdown(at time.Time) error {
	return n.send(fmt.Sprintf("🛑 市场监控系统已关闭\n时间: %s", at.Format("2006-01-02 15:04:05")))
}

// FormatAlert renders the fixed-format notification text. This format is a
// contract consumed by downstream chat tooling; change it only together
// with its tests.
func FormatAlert(alert domain.Alert) string {
	trend := "📈"
	if !alert.Rising() {
		trend = "📉"
	}
	return fmt.Sprintf(
		"%s 【%s波动告警】\n"+
			"标的: %s(%s)\n"+
			"涨跌幅: %+.2f%% (阈值: %s%%)\n"+
			"当前价: %.4f\n"+
			"参考价: %.4f\n"+
			"时间: %s",
		trend,
		alert.Frequency.Label(),
		alert.Name, alert.Symbol,
		alert.CurrentChange,
		strconv.FormatFloat(alert.Threshold, 'f', -1, 64),
		alert.CurrentPrice,
		alert.PreviousPrice,
		alert.Timestamp.Format("2006-01-02 15:04:05"),
	)
}

func (n *Notifier) send(content string) error {
	if n.webhookURL == "" {
		n.metrics.RecordNotification(false)
		return ErrNotConfigured
	}

	var msg textMessage
	msg.MsgType = "text"
	msg.Text.Content = content

	body, err := json.Marshal(msg)
	if err != nil {
		n.metrics.RecordNotification(false)
		return err
	}

	resp, err := n.httpClient.Post(n.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		n.metrics.RecordNotification(false)
		return domain.NewNetworkError("notify", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.metrics.RecordNotification(false)
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.NewNetworkError("notify",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, detail))
	}

	n.metrics.RecordNotification(true)
	slog.Debug("wecom message sent", slog.Int("bytes", len(content)))
	return nil
}
