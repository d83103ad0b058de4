package alerting

import (
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/LukasWeber/CardForge/app/models"
)

const defaultBufferSize = 64

var (
	defaultNotifier *Notifier
	defaultMu       sync.Mutex
)

// Setup starts the process-wide notifier. Called once at boot.
func Setup(db *gorm.DB) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultNotifier != nil {
		return
	}
	defaultNotifier = NewNotifier(db)
	defaultNotifier.Start()
}

// Default returns the process-wide notifier.
func Default() *Notifier {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultNotifier
}

// Shutdown drains and stops the process-wide notifier.
func Shutdown() {
	defaultMu.Lock()
	n := defaultNotifier
	defaultNotifier = nil
	defaultMu.Unlock()

	if n != nil {
		n.Stop()
	}
}

type alert struct {
	Type        string
	Severity    string
	Message     string
	ReferenceID uint
}

// Notifier raises operator alerts asynchronously. Raise never blocks and
// never fails the caller: alerts are handed to a background worker, and if
// the buffer is full the write falls back to a best-effort goroutine. The
// webhook response must not wait on alert persistence.
type Notifier struct {
	db      *gorm.DB
	alertCh chan alert
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewNotifier creates a notifier writing to the given database handle.
func NewNotifier(db *gorm.DB) *Notifier {
	return &Notifier{
		db:      db,
		alertCh: make(chan alert, defaultBufferSize),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the background worker.
func (n *Notifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return
	}
	n.running = true

	n.wg.Add(1)
	go n.worker()
}

// Stop drains pending alerts and stops the worker.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	n.mu.Unlock()

	close(n.stopCh)
	n.wg.Wait()
}

// Raise queues an operator alert. Safe to call from any goroutine, including
// on a nil receiver: before Setup has run the alert is logged and dropped.
func (n *Notifier) Raise(alertType, severity, message string, referenceID uint) {
	if n == nil {
		log.Warnf("[Alerting] notifier not running, dropping alert: %s", message)
		return
	}
	a := alert{Type: alertType, Severity: severity, Message: message, ReferenceID: referenceID}

	select {
	case n.alertCh <- a:
	default:
		// Buffer full; persist out of band rather than block the caller.
		log.Warnf("[Alerting] buffer full, writing alert directly: %s", message)
		go n.persist(a)
	}
}

func (n *Notifier) worker() {
	defer n.wg.Done()

	for {
		select {
		case a := <-n.alertCh:
			n.persist(a)
		case <-n.stopCh:
			// Drain whatever is left before exiting.
			for {
				select {
				case a := <-n.alertCh:
					n.persist(a)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) persist(a alert) {
	if err := models.CreateSystemNotification(n.db, a.Type, a.Severity, a.Message, a.ReferenceID); err != nil {
		log.Errorf("[Alerting] failed to persist notification (%s): %v", a.Message, err)
		return
	}
	log.Infof("[Alerting] %s alert raised for order %d: %s", a.Severity, a.ReferenceID, a.Message)
}
