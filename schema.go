package tlv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/zoobzio/sentinel"
)

// Struct tag keys.
const (
	TagBer       = "ber"
	TagCompact   = "compact"
	TagOrder     = "tlv.order"
	TagConvert   = "tlv.convert"
	TagMinLength = "ber.minlen"
)

func init() {
	sentinel.Tag(TagBer)
	sentinel.Tag(TagCompact)
	sentinel.Tag(TagOrder)
	sentinel.Tag(TagConvert)
	sentinel.Tag(TagMinLength)
}

// Format selects the wire format of a record.
type Format string

const (
	// FormatBER encodes records as BER-TLV items keyed by `ber` struct tags.
	FormatBER Format = "ber"

	// FormatCompact encodes records as Compact-TLV items keyed by `compact`
	// struct tags.
	FormatCompact Format = "compact"
)

// ContentType returns the MIME type for records in this format.
func (f Format) ContentType() string {
	return "application/vnd.tlv." + string(f)
}

func (f Format) valid() bool {
	return f == FormatBER || f == FormatCompact
}

// tagKey returns the struct tag key holding the item tag for this format.
func (f Format) tagKey() string {
	if f == FormatCompact {
		return TagCompact
	}
	return TagBer
}

// Schema encodes and decodes records of type T.
//
// Compact-TLV has no wire form for an empty value, so empty fields are
// omitted on encode and come back as absent: a pointer field stays nil and
// other fields keep their zero value.
//
// Schemas are immutable after construction and safe for concurrent use.
type Schema[T any] struct {
	plan     *typePlan
	format   Format
	typeName string
}

// DecodeOption configures a single decode.
type DecodeOption func(*decodeOptions)

type decodeOptions struct {
	ber     BerHandler
	compact CompactHandler
}

// ObserveBer forwards every top-level BER item to h after it has been
// applied to the record, including unknown-length and large items.
func ObserveBer(h BerHandler) DecodeOption {
	return func(o *decodeOptions) {
		o.ber = h
	}
}

// ObserveCompact forwards every top-level Compact-TLV item to h after it
// has been applied to the record.
func ObserveCompact(h CompactHandler) DecodeOption {
	return func(o *decodeOptions) {
		o.compact = h
	}
}

// typePlan describes how to encode and decode one record type.
type typePlan struct {
	typ         reflect.Type
	typeName    string
	format      Format
	fields      []fieldPlan    // encode order
	byTag       map[string]int // tag bytes -> index into fields
	marshaler   bool           // *typ implements the format's marshal override
	unmarshaler bool           // *typ implements the format's unmarshal override
}

// fieldPlan describes how to map a single field to an item.
type fieldPlan struct {
	index     []int        // reflect.Value.FieldByIndex access path
	name      string       // field name for error messages
	tag       Tag          // item tag; a single byte for Compact-TLV
	order     int          // tlv.order value
	minLen    int          // ber.minlen value
	pointer   bool         // field is *valueType
	valueType reflect.Type // field type with the pointer removed
	converter Converter    // nil when nested is set
	nested    *typePlan    // nested record plan
}

type planKey struct {
	typ    reflect.Type
	format Format
}

var (
	plansMu sync.RWMutex
	plans   = make(map[planKey]*typePlan)
)

var (
	berMarshalerType       = reflect.TypeFor[BerMarshaler]()
	berUnmarshalerType     = reflect.TypeFor[BerUnmarshaler]()
	compactMarshalerType   = reflect.TypeFor[CompactMarshaler]()
	compactUnmarshalerType = reflect.TypeFor[CompactUnmarshaler]()
)

// NewSchema creates a Schema for record type T in the given format.
//
// T is scanned once per format; later calls reuse the cached plan. Struct
// tags are validated here so encode and decode never see a malformed tag.
func NewSchema[T any](format Format) (*Schema[T], error) {
	if !format.valid() {
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidArgument, format)
	}

	rt := reflect.TypeFor[T]()
	plan, ok := cachedPlan(rt, format)
	if !ok {
		var meta *sentinel.Metadata
		if rt.Kind() == reflect.Struct {
			scanned := sentinel.Scan[T]()
			meta = &scanned
		}
		var err error
		plan, err = buildPlan(rt, format, meta)
		if err != nil {
			return nil, err
		}
	}

	s := &Schema[T]{
		plan:     plan,
		format:   format,
		typeName: plan.typeName,
	}

	emitSchemaCreated(context.Background(), format, plan.typeName, len(plan.fields))
	return s, nil
}

// Format returns the wire format of the schema.
func (s *Schema[T]) Format() Format {
	return s.format
}

// Marshal encodes obj as a sequence of items.
func (s *Schema[T]) Marshal(ctx context.Context, obj *T) ([]byte, error) {
	start := time.Now()
	emitEncodeStart(ctx, s.format, s.typeName)

	var retErr error
	var retData []byte
	defer func() {
		emitEncodeComplete(ctx, s.format, s.typeName, len(retData), time.Since(start), retErr)
	}()

	if obj == nil {
		retErr = newCodecError(ErrMarshal, fmt.Errorf("%w: record must not be nil", ErrInvalidArgument))
		return nil, retErr
	}

	data, err := s.plan.marshal(ctx, reflect.ValueOf(obj))
	if err != nil {
		retErr = newCodecError(ErrMarshal, err)
		return nil, retErr
	}
	retData = data
	return retData, nil
}

// Encode writes obj to w as a sequence of items.
func (s *Schema[T]) Encode(ctx context.Context, w io.Writer, obj *T) error {
	start := time.Now()
	emitEncodeStart(ctx, s.format, s.typeName)

	cw := &countingWriter{w: w}
	var retErr error
	defer func() {
		emitEncodeComplete(ctx, s.format, s.typeName, cw.n, time.Since(start), retErr)
	}()

	if w == nil || obj == nil {
		retErr = newCodecError(ErrMarshal, fmt.Errorf("%w: writer and record must not be nil", ErrInvalidArgument))
		return retErr
	}

	if err := s.plan.encode(ctx, cw, reflect.ValueOf(obj).Elem()); err != nil {
		retErr = newCodecError(ErrMarshal, err)
		return retErr
	}
	return nil
}

// Unmarshal decodes a record from data.
//
// Items whose tag matches no field are ignored. Fields with no matching
// item keep their zero value.
func (s *Schema[T]) Unmarshal(ctx context.Context, data []byte, opts ...DecodeOption) (*T, error) {
	var obj T
	if err := s.decode(ctx, bytes.NewReader(data), &obj, opts); err != nil {
		return nil, err
	}
	return &obj, nil
}

// Decode reads a record from r into obj. Fields of obj with no matching
// item are left untouched.
func (s *Schema[T]) Decode(ctx context.Context, r io.Reader, obj *T, opts ...DecodeOption) error {
	return s.decode(ctx, r, obj, opts)
}

func (s *Schema[T]) decode(ctx context.Context, r io.Reader, obj *T, opts []DecodeOption) error {
	start := time.Now()
	emitDecodeStart(ctx, s.format, s.typeName)

	var retErr error
	var items int
	defer func() {
		emitDecodeComplete(ctx, s.format, s.typeName, time.Since(start), items, retErr)
	}()

	if r == nil || obj == nil {
		retErr = newCodecError(ErrUnmarshal, fmt.Errorf("%w: reader and record must not be nil", ErrInvalidArgument))
		return retErr
	}

	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	n, err := s.plan.decode(ctx, r, reflect.ValueOf(obj).Elem(), &o)
	items = n
	if err != nil {
		retErr = newCodecError(ErrUnmarshal, err)
		return retErr
	}
	return nil
}

// cachedPlan returns a previously built plan.
func cachedPlan(rt reflect.Type, format Format) (*typePlan, bool) {
	plansMu.RLock()
	defer plansMu.RUnlock()
	p, ok := plans[planKey{typ: rt, format: format}]
	return p, ok
}

// planFor returns the cached plan for rt or builds one.
func planFor(rt reflect.Type, format Format) (*typePlan, error) {
	if p, ok := cachedPlan(rt, format); ok {
		return p, nil
	}
	if !format.valid() {
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidArgument, format)
	}
	return buildPlan(rt, format, nil)
}

// buildPlan builds the plan for rt and every record type reachable from it,
// then publishes them together. Nothing is cached if any type is invalid.
func buildPlan(rt reflect.Type, format Format, meta *sentinel.Metadata) (*typePlan, error) {
	b := &planBuilder{
		format:   format,
		building: make(map[reflect.Type]*typePlan),
	}
	plan, err := b.build(rt, meta)
	if err != nil {
		return nil, err
	}

	plansMu.Lock()
	defer plansMu.Unlock()

	// Double-check pattern
	if cached, ok := plans[planKey{typ: rt, format: format}]; ok {
		return cached, nil
	}
	for t, p := range b.building {
		key := planKey{typ: t, format: format}
		if _, ok := plans[key]; !ok {
			plans[key] = p
		}
	}
	return plan, nil
}

// resetPlans clears the plan cache.
func resetPlans() {
	plansMu.Lock()
	defer plansMu.Unlock()
	plans = make(map[planKey]*typePlan)
}

// planBuilder tracks plans under construction so recursive record types
// resolve to the plan being built instead of recursing forever.
type planBuilder struct {
	format   Format
	building map[reflect.Type]*typePlan
}

func (b *planBuilder) build(rt reflect.Type, meta *sentinel.Metadata) (*typePlan, error) {
	if p, ok := b.building[rt]; ok {
		return p, nil
	}
	if p, ok := cachedPlan(rt, b.format); ok {
		return p, nil
	}

	p := &typePlan{
		typ:      rt,
		typeName: rt.Name(),
		format:   b.format,
		byTag:    make(map[string]int),
	}
	p.marshaler, p.unmarshaler = overridesFor(rt, b.format)
	b.building[rt] = p

	if p.marshaler && p.unmarshaler {
		return p, nil
	}
	if rt.Kind() != reflect.Struct {
		return nil, newSchemaError(ErrUnsupportedType, rt.String(), "", "record types must be structs")
	}

	if meta == nil {
		meta = scanRecordType(rt)
	}
	if meta.TypeName != "" {
		p.typeName = meta.TypeName
	}

	for _, field := range meta.Fields {
		tagVal, ok := field.Tags[b.format.tagKey()]
		if !ok {
			continue
		}
		fp, err := b.buildField(p, field, tagVal)
		if err != nil {
			return nil, err
		}
		key := string(fp.tag)
		if _, dup := p.byTag[key]; dup {
			return nil, newSchemaError(ErrDuplicateTag, p.typeName, field.Name, tagVal)
		}
		p.byTag[key] = len(p.fields)
		p.fields = append(p.fields, fp)
	}

	sort.SliceStable(p.fields, func(i, j int) bool {
		return p.fields[i].order < p.fields[j].order
	})
	for i, f := range p.fields {
		p.byTag[string(f.tag)] = i
	}

	return p, nil
}

func (b *planBuilder) buildField(p *typePlan, field sentinel.FieldMetadata, tagVal string) (fieldPlan, error) {
	fp := fieldPlan{
		index:     field.Index,
		name:      field.Name,
		valueType: field.ReflectType,
	}

	tag, err := parseFieldTag(b.format, tagVal)
	if err != nil {
		return fp, newSchemaError(ErrInvalidTag, p.typeName, field.Name, tagVal)
	}
	fp.tag = tag

	if val, ok := field.Tags[TagOrder]; ok {
		order, err := strconv.Atoi(val)
		if err != nil {
			return fp, newSchemaError(ErrInvalidTag, p.typeName, field.Name, val)
		}
		fp.order = order
	}

	if val, ok := field.Tags[TagMinLength]; ok && b.format == FormatBER {
		minLen, err := strconv.Atoi(val)
		if err != nil || minLen < 0 || minLen > MaxLengthFieldBytes {
			return fp, newSchemaError(ErrInvalidTag, p.typeName, field.Name, val)
		}
		fp.minLen = minLen
	}

	if fp.valueType.Kind() == reflect.Pointer {
		fp.pointer = true
		fp.valueType = fp.valueType.Elem()
	}

	marshaler, unmarshaler := overridesFor(fp.valueType, b.format)
	switch name := ConverterName(field.Tags[TagConvert]); {
	case name != "":
		c, ok := lookupConverter(name)
		if !ok {
			return fp, newSchemaError(ErrMissingConverter, p.typeName, field.Name, string(name))
		}
		fp.converter = c
	case marshaler && unmarshaler:
		fp.nested, err = b.build(fp.valueType, nil)
	default:
		if name, ok := defaultConverter(fp.valueType); ok {
			fp.converter, _ = lookupConverter(name)
		} else if fp.valueType.Kind() == reflect.Struct {
			fp.nested, err = b.build(fp.valueType, nil)
		} else {
			return fp, newSchemaError(ErrUnsupportedType, p.typeName, field.Name, field.ReflectType.String())
		}
	}
	return fp, err
}

// parseFieldTag parses a BER tag in hex or a Compact-TLV tag in 0-15.
func parseFieldTag(format Format, val string) (Tag, error) {
	if format == FormatCompact {
		n, err := strconv.ParseUint(val, 0, 8)
		if err != nil {
			return nil, err
		}
		if n > MaxCompactNibble {
			return nil, fmt.Errorf("compact tag %d exceeds %d", n, MaxCompactNibble)
		}
		return Tag{byte(n)}, nil
	}
	return ParseTag(val)
}

// overridesFor reports which override interfaces *rt implements for format.
func overridesFor(rt reflect.Type, format Format) (marshaler, unmarshaler bool) {
	pt := reflect.PointerTo(rt)
	if format == FormatCompact {
		return pt.Implements(compactMarshalerType), pt.Implements(compactUnmarshalerType)
	}
	return pt.Implements(berMarshalerType), pt.Implements(berUnmarshalerType)
}

// scanRecordType returns sentinel metadata for a nested record type,
// scanning it with reflection when sentinel has not seen it.
func scanRecordType(rt reflect.Type) *sentinel.Metadata {
	if meta, ok := sentinel.Lookup(rt.String()); ok {
		return &meta
	}

	meta := sentinel.Metadata{
		TypeName:    rt.Name(),
		PackageName: rt.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, rt.NumField()),
	}

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}

		fm := sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
			Tags:        parseRecordTags(sf.Tag),
		}

		switch sf.Type.Kind() {
		case reflect.Struct:
			fm.Kind = sentinel.KindStruct
		case reflect.Ptr:
			fm.Kind = sentinel.KindPointer
		case reflect.Slice, reflect.Array:
			fm.Kind = sentinel.KindSlice
		case reflect.Map:
			fm.Kind = sentinel.KindMap
		case reflect.Interface:
			fm.Kind = sentinel.KindInterface
		default:
			fm.Kind = sentinel.KindScalar
		}

		meta.Fields = append(meta.Fields, fm)
	}

	return &meta
}

// parseRecordTags extracts the tlv struct tags.
func parseRecordTags(tag reflect.StructTag) map[string]string {
	tags := make(map[string]string)
	for _, key := range []string{TagBer, TagCompact, TagOrder, TagConvert, TagMinLength} {
		if val, ok := tag.Lookup(key); ok {
			tags[key] = val
		}
	}
	return tags
}

// addressOf returns a pointer to rv, copying rv when it is not addressable.
func addressOf(rv reflect.Value) reflect.Value {
	if rv.CanAddr() {
		return rv.Addr()
	}
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	return ptr
}

// marshal encodes the record ptr points to.
func (p *typePlan) marshal(ctx context.Context, ptr reflect.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.encode(ctx, &buf, ptr.Elem()); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return []byte{}, nil
	}
	return buf.Bytes(), nil
}

// encode writes the items of rv in field order.
func (p *typePlan) encode(ctx context.Context, w io.Writer, rv reflect.Value) error {
	if p.marshaler {
		target := addressOf(rv).Interface()
		if p.format == FormatCompact {
			return target.(CompactMarshaler).MarshalCompact(w)
		}
		return target.(BerMarshaler).MarshalBer(w)
	}

	for i := range p.fields {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := &p.fields[i]

		fv := rv.FieldByIndex(f.index)
		if f.pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		if fv.Kind() == reflect.Slice && fv.IsNil() {
			continue
		}

		value, err := f.encodeValue(ctx, fv)
		if err != nil {
			return err
		}

		if p.format == FormatCompact {
			if len(value) == 0 {
				continue
			}
			if len(value) > MaxCompactNibble {
				return newFieldError(f.name, f.tag,
					fmt.Errorf("value of %d bytes does not fit a compact item", len(value)))
			}
			err = WriteCompact(w, f.tag[0], value)
		} else {
			err = WriteBer(w, f.tag, value, f.minLen)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// encodeValue returns the item value for fv. The result is never nil.
func (f *fieldPlan) encodeValue(ctx context.Context, fv reflect.Value) ([]byte, error) {
	if f.nested != nil {
		value, err := f.nested.marshal(ctx, addressOf(fv))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		return value, nil
	}

	value, err := f.converter.ToBytes(fv.Interface())
	if err != nil {
		return nil, newFieldError(f.name, f.tag, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// unmarshal decodes data into rv, which must be settable.
func (p *typePlan) unmarshal(ctx context.Context, data []byte, rv reflect.Value, opts *decodeOptions) (int, error) {
	if p.unmarshaler {
		return 0, p.callUnmarshaler(rv, data)
	}
	return p.decode(ctx, bytes.NewReader(data), rv, opts)
}

// decode reads items from r into rv and returns the number of items read.
func (p *typePlan) decode(ctx context.Context, r io.Reader, rv reflect.Value, opts *decodeOptions) (int, error) {
	if opts == nil {
		opts = &decodeOptions{}
	}

	if p.unmarshaler {
		data, err := io.ReadAll(r)
		if err != nil {
			return 0, err
		}
		return 0, p.callUnmarshaler(rv, data)
	}

	d := &recordDecoder{ctx: ctx, plan: p, rv: rv, opts: opts}
	var err error
	if p.format == FormatCompact {
		err = DecodeCompact(r, compactRecordDecoder{d})
	} else {
		err = DecodeBer(r, berRecordDecoder{d})
	}
	return d.items, err
}

func (p *typePlan) callUnmarshaler(rv reflect.Value, data []byte) error {
	target := addressOf(rv).Interface()
	if p.format == FormatCompact {
		return target.(CompactUnmarshaler).UnmarshalCompact(data)
	}
	return target.(BerUnmarshaler).UnmarshalBer(data)
}

// recordDecoder applies decoded items to a record.
type recordDecoder struct {
	ctx   context.Context
	plan  *typePlan
	rv    reflect.Value
	opts  *decodeOptions
	items int
}

// apply assigns value to the field mapped to tag, if any.
func (d *recordDecoder) apply(tag Tag, value []byte) error {
	if err := d.ctx.Err(); err != nil {
		return err
	}
	d.items++
	i, ok := d.plan.byTag[string(tag)]
	if !ok {
		return nil
	}
	return d.plan.fields[i].assign(d.ctx, d.rv, value)
}

// assign converts value and stores it in the field of rv.
func (f *fieldPlan) assign(ctx context.Context, rv reflect.Value, value []byte) error {
	fv := rv.FieldByIndex(f.index)
	target := fv
	if f.pointer {
		target = reflect.New(f.valueType).Elem()
	}

	if f.nested != nil {
		if _, err := f.nested.unmarshal(ctx, value, target, nil); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	} else {
		out, err := f.converter.FromBytes(value)
		if err != nil {
			return newFieldError(f.name, f.tag, err)
		}
		if err := assignConverted(target, out); err != nil {
			return newFieldError(f.name, f.tag, err)
		}
	}

	if f.pointer {
		fv.Set(target.Addr())
	}
	return nil
}

type berRecordDecoder struct {
	*recordDecoder
}

func (d berRecordDecoder) ItemDetected(tag Tag, value []byte) error {
	if err := d.apply(tag, value); err != nil {
		return err
	}
	if d.opts.ber != nil {
		return d.opts.ber.ItemDetected(tag, value)
	}
	return nil
}

// UnknownLengthItemDetected hands the stream to the observer. Without one
// the item cannot be delimited, so decoding continues with whatever follows.
func (d berRecordDecoder) UnknownLengthItemDetected(tag Tag, r io.Reader) error {
	if err := d.ctx.Err(); err != nil {
		return err
	}
	d.items++
	emitUnknownLengthItem(d.ctx, d.plan.typeName, tag)
	if d.opts.ber != nil {
		return d.opts.ber.UnknownLengthItemDetected(tag, r)
	}
	return nil
}

// LargeItemDetected hands the stream to the observer, or skips the value.
func (d berRecordDecoder) LargeItemDetected(tag Tag, length *big.Int, r io.Reader) error {
	if err := d.ctx.Err(); err != nil {
		return err
	}
	d.items++
	emitLargeItem(d.ctx, d.plan.typeName, tag, length.String())
	if d.opts.ber != nil {
		return d.opts.ber.LargeItemDetected(tag, length, r)
	}
	return skipValue(r, length)
}

type compactRecordDecoder struct {
	*recordDecoder
}

func (d compactRecordDecoder) ItemDetected(tag byte, value []byte) error {
	if err := d.apply(Tag{tag}, value); err != nil {
		return err
	}
	if d.opts.compact != nil {
		return d.opts.compact.ItemDetected(tag, value)
	}
	return nil
}

// skipValue discards length bytes from r.
func skipValue(r io.Reader, length *big.Int) error {
	start := offsetOf(r)
	if !length.IsInt64() {
		return newDecodeError(start, StageValue, ErrInvalidObject,
			fmt.Errorf("value of %s bytes cannot be skipped", length))
	}
	if _, err := io.CopyN(io.Discard, r, length.Int64()); err != nil {
		return streamError(start, StageValue, err)
	}
	return nil
}

// countingWriter counts the bytes written through it.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
