package browser

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"webtestflow/recorder/internal/capture"
	"webtestflow/recorder/internal/channel"
	"webtestflow/recorder/internal/config"
)

type recordingChannel struct {
	mu   sync.Mutex
	sent []channel.Message
}

func (r *recordingChannel) Request(ctx context.Context, msg channel.Message) (channel.Response, error) {
	return channel.Response{}, nil
}

func (r *recordingChannel) Send(ctx context.Context, msg channel.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingChannel) messages() []channel.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]channel.Message(nil), r.sent...)
}

func testTab(t *testing.T) *Tab {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return newTab(ctx, cancel, zap.NewNop())
}

func TestHandleEvent_Navigation(t *testing.T) {
	tab := testTab(t)
	ch := &recordingChannel{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tab.Forward(ctx, ch)
	}()

	tab.handleEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "main", URL: "https://shop.example/checkout?step=2"}})
	tab.handleEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "ad", ParentID: "main", URL: "https://ads.example/"}})
	tab.handleEvent(&page.EventFrameNavigated{})

	require.Eventually(t, func() bool { return len(ch.messages()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	msgs := ch.messages()
	assert.Equal(t, channel.Message{Type: channel.TypeNavigation, URL: "https://shop.example/checkout?step=2", MainFrame: true}, msgs[0])
	assert.False(t, msgs[1].MainFrame)
}

func TestHandleEvent_Binding(t *testing.T) {
	tab := testTab(t)
	var got []string
	tab.OnBinding(func(payload string) { got = append(got, payload) })

	tab.handleEvent(&runtime.EventBindingCalled{Name: capture.BindingName, Payload: `{"type":"event"}`})
	tab.handleEvent(&runtime.EventBindingCalled{Name: "somethingElse", Payload: "x"})
	assert.Equal(t, []string{`{"type":"event"}`}, got)
}

func TestTab_ClosedHasNoPage(t *testing.T) {
	tab := testTab(t)
	tab.cancel()

	_, err := tab.Evaluate(context.Background(), "1")
	assert.ErrorIs(t, err, capture.ErrNoActivePage)
	_, err = tab.CaptureViewport(context.Background())
	assert.ErrorIs(t, err, capture.ErrNoActivePage)
	assert.ErrorIs(t, tab.ExposeBinding(context.Background(), capture.BindingName), capture.ErrNoActivePage)
	assert.ErrorIs(t, tab.OpenTab(context.Background(), "about:blank"), capture.ErrNoActivePage)
}

func TestTab_NoTargetHasNoPage(t *testing.T) {
	tab := testTab(t)
	_, err := tab.Evaluate(context.Background(), "1")
	assert.ErrorIs(t, err, capture.ErrNoActivePage)
}

func TestExecPath(t *testing.T) {
	assert.Equal(t, "/opt/custom/chrome", ExecPath("/opt/custom/chrome"))

	bin := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.WriteFile(bin, nil, 0o755))
	plain := AllocatorOptions(config.ChromeConfig{ExecPath: bin})
	emulated := AllocatorOptions(config.ChromeConfig{ExecPath: bin, Device: "Galaxy S5"})
	assert.Len(t, emulated, len(plain)+1, "a device adds its user agent")
}

func TestLookupDevice(t *testing.T) {
	_, ok := LookupDevice("")
	assert.False(t, ok)
	_, ok = LookupDevice("Nokia 3310")
	assert.False(t, ok)

	dev, ok := LookupDevice("iPhone 12 Pro")
	require.True(t, ok)
	assert.Equal(t, int64(390), dev.Width)
	assert.Equal(t, 1.0, dev.Scale)
	assert.Contains(t, DeviceNames(), "Desktop 1280x800")
}
