// Package goble exposes the characteristic service over a go-ble GATT server.
package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/mbitmore/internal/characteristic"
	"github.com/srg/mbitmore/internal/groutine"
	"github.com/srg/mbitmore/internal/service"
)

type subscription struct {
	notifier ble.Notifier
	address  string
}

// Adapter binds an EventHandler to a ble.Service and implements
// service.Transport over the notifiers the central subscribed.
//
// A connection is recognised on the first request it makes and released when
// its Disconnected channel (or context) closes. The handler sees OnConnect
// when the first central attaches and OnDisconnect when the last one leaves.
type Adapter struct {
	table   *characteristic.Table
	handler service.EventHandler
	logger  *logrus.Logger
	svc     *ble.Service

	notifiers *hashmap.Map[characteristic.Index, *subscription]
	conns     *hashmap.Map[string, ble.Conn]
	connMu    sync.Mutex
}

var _ service.Transport = (*Adapter)(nil)

// NewAdapter builds the GATT service for table and routes its callbacks to handler.
func NewAdapter(table *characteristic.Table, handler service.EventHandler, logger *logrus.Logger) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	a := &Adapter{
		table:     table,
		handler:   handler,
		logger:    logger,
		notifiers: hashmap.New[characteristic.Index, *subscription](),
		conns:     hashmap.New[string, ble.Conn](),
	}
	a.svc = a.buildService()
	return a
}

// BLEService returns the GATT service definition to register with a device.
func (a *Adapter) BLEService() *ble.Service {
	return a.svc
}

func (a *Adapter) buildService() *ble.Service {
	svc := ble.NewService(a.table.ServiceUUID())
	for _, d := range a.table.Descriptors() {
		c := ble.NewCharacteristic(d.UUID)
		if d.Readable() {
			c.HandleRead(a.readHandler(d.Index))
		}
		if d.Writable() {
			c.HandleWrite(a.writeHandler(d.Index))
		}
		if d.Notifiable() {
			c.HandleNotify(a.notifyHandler(d.Index))
		}
		c.Property = d.Props
		svc.AddCharacteristic(c)
	}
	return svc
}

func (a *Adapter) readHandler(i characteristic.Index) ble.ReadHandlerFunc {
	return func(req ble.Request, rsp ble.ResponseWriter) {
		a.track(req.Conn())
		data, err := a.handler.OnDataRead(i)
		if err != nil {
			rsp.SetStatus(attStatus(err))
			return
		}
		if off := req.Offset(); off > 0 {
			if off > len(data) {
				rsp.SetStatus(ble.ErrInvalidOffset)
				return
			}
			data = data[off:]
		}
		if c := rsp.Cap(); c > 0 && len(data) > c {
			data = data[:c]
		}
		_, _ = rsp.Write(data)
	}
}

func (a *Adapter) writeHandler(i characteristic.Index) ble.WriteHandlerFunc {
	return func(req ble.Request, rsp ble.ResponseWriter) {
		a.track(req.Conn())
		if err := a.handler.OnDataWritten(i, req.Data()); err != nil {
			rsp.SetStatus(attStatus(err))
		}
	}
}

// notifyHandler blocks for the lifetime of the subscription.
func (a *Adapter) notifyHandler(i characteristic.Index) ble.NotifyHandlerFunc {
	return func(req ble.Request, n ble.Notifier) {
		a.track(req.Conn())
		sub := &subscription{notifier: n, address: remoteAddress(req.Conn())}
		a.notifiers.Set(i, sub)

		log := a.logger.WithFields(logrus.Fields{
			"characteristic": i.String(),
			"address":        sub.address,
		})
		log.Debug("Notifications subscribed")

		<-n.Context().Done()

		if cur, ok := a.notifiers.Get(i); ok && cur == sub {
			a.notifiers.Del(i)
		}
		log.Debug("Notifications unsubscribed")
	}
}

// Notify writes payload to the notifier subscribed for i. It returns
// service.ErrNoSubscriber when nothing is subscribed, so the value is sent
// again once the central enables notifications.
func (a *Adapter) Notify(i characteristic.Index, payload []byte) error {
	sub, ok := a.notifiers.Get(i)
	if !ok {
		return fmt.Errorf("notify %s: %w", i, service.ErrNoSubscriber)
	}
	if c := sub.notifier.Cap(); c > 0 && len(payload) > c {
		payload = payload[:c]
	}
	if _, err := sub.notifier.Write(payload); err != nil {
		return fmt.Errorf("notify %s: %w", i, err)
	}
	return nil
}

// Subscribed reports whether the central subscribed to notifications on i.
func (a *Adapter) Subscribed(i characteristic.Index) bool {
	_, ok := a.notifiers.Get(i)
	return ok
}

// Connections returns the number of attached centrals.
func (a *Adapter) Connections() int {
	return a.conns.Len()
}

func (a *Adapter) track(conn ble.Conn) {
	if conn == nil {
		return
	}
	addr := remoteAddress(conn)

	a.connMu.Lock()
	if _, loaded := a.conns.GetOrInsert(addr, conn); loaded {
		a.connMu.Unlock()
		return
	}
	first := a.conns.Len() == 1
	a.connMu.Unlock()

	a.logger.WithField("address", addr).Info("Central attached")
	if first {
		a.handler.OnConnect()
	}

	groutine.Go(context.Background(), "ble-conn-monitor", func(context.Context) {
		<-disconnected(conn)
		a.release(addr)
	})
}

func (a *Adapter) release(addr string) {
	a.connMu.Lock()
	a.conns.Del(addr)
	last := a.conns.Len() == 0
	a.connMu.Unlock()

	a.logger.WithField("address", addr).Info("Central detached")
	if !last {
		return
	}
	a.notifiers.Range(func(i characteristic.Index, _ *subscription) bool {
		a.notifiers.Del(i)
		return true
	})
	a.handler.OnDisconnect()
}

// Serve registers the service with dev and advertises it under name until
// ctx is done.
func (a *Adapter) Serve(ctx context.Context, dev ble.Device, name string) error {
	if err := dev.AddService(a.svc); err != nil {
		return fmt.Errorf("failed to add service: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"name":    name,
		"service": a.table.ServiceText(),
	}).Info("Advertising")

	err := dev.AdvertiseNameAndServices(ctx, name, a.table.ServiceUUID())
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("advertising failed: %w", err)
	}
	return nil
}

func remoteAddress(conn ble.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}

func disconnected(conn ble.Conn) <-chan struct{} {
	if d, ok := conn.(interface{ Disconnected() <-chan struct{} }); ok {
		return d.Disconnected()
	}
	return conn.Context().Done()
}

func attStatus(err error) ble.ATTError {
	switch {
	case errors.Is(err, service.ErrNotReadable):
		return ble.ErrReadNotPerm
	case errors.Is(err, service.ErrNotWritable):
		return ble.ErrWriteNotPerm
	case errors.Is(err, service.ErrUnknownCharacteristic):
		return ble.ErrInvalidHandle
	default:
		return ble.ErrUnlikely
	}
}
