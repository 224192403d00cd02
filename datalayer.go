package datalayer

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultPlaceholder is the string DOM nodes are replaced with when
	// dataLayer messages are serialized.
	DefaultPlaceholder = "[HTMLObject]"

	// DefaultContainerPrefix is the prefix of GTM container ids.
	DefaultContainerPrefix = "GTM-"

	tracerName = "github.com/chromedp/datalayer"
)

// DataLayer reads and writes the dataLayer state of a page through a GTM
// container.
//
// A DataLayer is immutable once created and holds no state of its own: every
// call is a single round trip to the page, so it is safe for concurrent use.
type DataLayer struct {
	page        Page
	containerID string

	placeholder  string
	isHostObject string
	prefix       string

	// function sources with the host object predicate filled in
	getFn       string
	dataModelFn string
	messagesFn  string

	logf, dbgf, errf func(string, ...interface{})

	tracer trace.Tracer
}

// New creates a DataLayer bound to the page and the GTM container with the
// given id (eg, "GTM-XXXXXXX").
func New(page Page, containerID string, opts ...Option) *DataLayer {
	dl := &DataLayer{
		page:         page,
		containerID:  containerID,
		placeholder:  DefaultPlaceholder,
		isHostObject: isHostObjectJS,
		prefix:       DefaultContainerPrefix,
		logf:         func(string, ...interface{}) {},
		dbgf:         func(string, ...interface{}) {},
	}
	for _, o := range opts {
		o(dl)
	}
	if dl.errf == nil {
		dl.errf = func(s string, v ...interface{}) { dl.logf("ERROR: "+s, v...) }
	}
	if dl.tracer == nil {
		dl.tracer = otel.Tracer(tracerName)
	}

	dl.getFn = withHostObject(getJS, dl.isHostObject)
	dl.dataModelFn = withHostObject(dataModelJS, dl.isHostObject)
	dl.messagesFn = withHostObject(messagesJS, dl.isHostObject)
	return dl
}

// ContainerID returns the id of the container the DataLayer is bound to.
func (dl *DataLayer) ContainerID() string {
	return dl.containerID
}

// Get reads the current value of the variable from the container's data
// model, unmarshaling it to res. The variable name uses GTM's dot-notation
// (eg, "ecommerce.purchase.id").
//
// It returns false, leaving res untouched, when the variable is undefined.
// When res is nil, the value is discarded.
func (dl *DataLayer) Get(ctx context.Context, variable string, res interface{}) (_ bool, err error) {
	if variable == "" {
		return false, ErrInvalidVariable
	}
	ctx, span := dl.start(ctx, "get", attribute.String("gtm.variable", variable))
	defer func() { dl.end(span, "get", err) }()

	r, err := dl.evaluate(ctx, "get", dl.getFn, dl.containerID, variable, dl.placeholder)
	if err != nil {
		return false, err
	}
	if r.Missing != "" {
		return false, &NotFoundError{Kind: r.Missing, ID: dl.containerID}
	}
	if !r.Found {
		return false, nil
	}
	if res != nil {
		if err = json.Unmarshal(r.Value, res); err != nil {
			return false, err
		}
	}
	return true, nil
}

// ContainerIDs returns the ids of all the GTM containers running on the page,
// in the order the page registered them.
//
// It returns an empty slice when the GTM registry exists but holds no
// container, and a NotFoundError when there is no registry at all.
func (dl *DataLayer) ContainerIDs(ctx context.Context) (_ []string, err error) {
	ctx, span := dl.start(ctx, "container_ids")
	defer func() { dl.end(span, "container_ids", err) }()

	r, err := dl.evaluate(ctx, "container_ids", containerIDsJS, dl.prefix)
	if err != nil {
		return nil, err
	}
	if r.Missing != "" {
		return nil, &NotFoundError{Kind: r.Missing}
	}
	if r.IDs == nil {
		return []string{}, nil
	}
	return r.IDs, nil
}

// DataModel returns a snapshot of the whole data model of the container with
// the given id. An empty id selects the container the DataLayer is bound to.
func (dl *DataLayer) DataModel(ctx context.Context, containerID string) (_ DataModel, err error) {
	if containerID == "" {
		containerID = dl.containerID
	}
	ctx, span := dl.start(ctx, "data_model", attribute.String("gtm.requested_container_id", containerID))
	defer func() { dl.end(span, "data_model", err) }()

	r, err := dl.evaluate(ctx, "data_model", dl.dataModelFn, containerID, dl.placeholder)
	if err != nil {
		return nil, err
	}
	if r.Missing != "" {
		return nil, &NotFoundError{Kind: r.Missing, ID: containerID}
	}
	var model DataModel
	if len(r.Value) != 0 {
		if err = json.Unmarshal(r.Value, &model); err != nil {
			return nil, err
		}
	}
	if model == nil {
		// null or missing model
		model = DataModel{}
	}
	return model, nil
}

// Events returns every message pushed with the given event name, in push
// order. It returns an empty slice when no message matches.
//
// Event names are compared strictly: a message whose "event" is not a string
// (eg, the number 1) never matches, not even the name "1".
func (dl *DataLayer) Events(ctx context.Context, event string) (_ []Message, err error) {
	ctx, span := dl.start(ctx, "events", attribute.String("gtm.event", event))
	defer func() { dl.end(span, "events", err) }()

	return dl.messages(ctx, "events", true, event)
}

// LatestEvent returns the most recent message pushed with the given event
// name, or the most recent message when event is empty.
//
// It returns false when no message matches.
func (dl *DataLayer) LatestEvent(ctx context.Context, event string) (_ Message, _ bool, err error) {
	ctx, span := dl.start(ctx, "latest_event", attribute.String("gtm.event", event))
	defer func() { dl.end(span, "latest_event", err) }()

	msgs, err := dl.messages(ctx, "latest_event", event != "", event)
	if err != nil {
		return nil, false, err
	}
	m, ok := last(msgs)
	return m, ok, nil
}

// LatestMessage returns the most recent message pushed to the dataLayer.
//
// It returns false when the dataLayer is empty.
func (dl *DataLayer) LatestMessage(ctx context.Context) (_ Message, _ bool, err error) {
	ctx, span := dl.start(ctx, "latest_message")
	defer func() { dl.end(span, "latest_message", err) }()

	msgs, err := dl.messages(ctx, "latest_message", false, "")
	if err != nil {
		return nil, false, err
	}
	m, ok := last(msgs)
	return m, ok, nil
}

// History returns every message pushed to the dataLayer, in push order.
//
// Host objects found in the messages (DOM nodes, unless changed with
// WithHostObjectFunc) are replaced with the placeholder string. Any other
// serialization failure is returned as a SerializationError.
func (dl *DataLayer) History(ctx context.Context) (_ []Message, err error) {
	ctx, span := dl.start(ctx, "history")
	defer func() { dl.end(span, "history", err) }()

	return dl.messages(ctx, "history", false, "")
}

// Push pushes msg to the dataLayer. A msg with an "event" key is a GTM
// event.
func (dl *DataLayer) Push(ctx context.Context, msg Message) (err error) {
	ctx, span := dl.start(ctx, "push", attribute.String("gtm.event", msg.Event()))
	defer func() { dl.end(span, "push", err) }()

	_, err = dl.evaluate(ctx, "push", pushJS, msg)
	return err
}

// WaitForEvent blocks until a message with the given event name is in the
// dataLayer, polling the page as configured by opts.
//
// It returns ErrTimeout when the polling timeout elapses first.
func (dl *DataLayer) WaitForEvent(ctx context.Context, event string, opts ...WaitOption) (err error) {
	p := newPolling(opts...)
	ctx, span := dl.start(ctx, "wait_for_event",
		attribute.String("gtm.event", event),
		attribute.String("gtm.polling", string(p.Mode)),
		attribute.Int64("gtm.timeout_ms", p.Timeout.Milliseconds()),
	)
	defer func() { dl.end(span, "wait_for_event", err) }()

	dl.logf("waiting for event %q", event)
	start := time.Now()
	if err = dl.page.Poll(ctx, hasEventJS, p, event); err != nil {
		return err
	}
	dl.logf("event %q seen after %v", event, time.Since(start))
	return nil
}

func (dl *DataLayer) messages(ctx context.Context, op string, filter bool, event string) ([]Message, error) {
	r, err := dl.evaluate(ctx, op, dl.messagesFn, filter, event, dl.placeholder)
	if err != nil {
		return nil, err
	}
	switch {
	case r.Missing != "":
		return nil, &NotFoundError{Kind: r.Missing}
	case r.SerializeError != "":
		return nil, &SerializationError{Message: r.SerializeError}
	case r.Messages == nil:
		return []Message{}, nil
	}
	return r.Messages, nil
}

// evaluate runs fn in the page and decodes its result envelope. Errors from
// the page are returned unchanged.
func (dl *DataLayer) evaluate(ctx context.Context, op, fn string, args ...interface{}) (*result, error) {
	dl.dbgf("-> %s %v", op, args)
	buf, err := dl.page.Evaluate(ctx, fn, args...)
	if err != nil {
		return nil, err
	}
	dl.dbgf("<- %s %s", op, buf)
	return decodeResult(buf)
}

func (dl *DataLayer) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("gtm.container_id", dl.containerID))
	return dl.tracer.Start(ctx, "datalayer."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func (dl *DataLayer) end(span trace.Span, op string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		dl.errf("%s: %v", op, err)
	}
	span.End()
}

func last(msgs []Message) (Message, bool) {
	if len(msgs) == 0 {
		return nil, false
	}
	return msgs[len(msgs)-1], true
}
