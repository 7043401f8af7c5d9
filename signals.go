package tlv

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for record codec events.
var (
	SignalSchemaCreated     = capitan.NewSignal("tlv.schema.created", "Record schema built")
	SignalDecodeStart       = capitan.NewSignal("tlv.decode.start", "Record decode beginning")
	SignalDecodeComplete    = capitan.NewSignal("tlv.decode.complete", "Record decode finished")
	SignalEncodeStart       = capitan.NewSignal("tlv.encode.start", "Record encode beginning")
	SignalEncodeComplete    = capitan.NewSignal("tlv.encode.complete", "Record encode finished")
	SignalUnknownLengthItem = capitan.NewSignal("tlv.item.unknown_length", "Item with unknown length handed to caller")
	SignalLargeItem         = capitan.NewSignal("tlv.item.large", "Item too large to buffer handed to caller")
)

// Keys for typed event data.
var (
	KeyFormat     = capitan.NewStringKey("format")
	KeyTypeName   = capitan.NewStringKey("type_name")
	KeySize       = capitan.NewIntKey("size")
	KeyDuration   = capitan.NewDurationKey("duration")
	KeyError      = capitan.NewErrorKey("error")
	KeyItemCount  = capitan.NewIntKey("item_count")
	KeyFieldCount = capitan.NewIntKey("field_count")
	KeyTag        = capitan.NewStringKey("tag")
	KeyLength     = capitan.NewStringKey("length")
)

// emitSchemaCreated emits an event when a schema is built.
func emitSchemaCreated(ctx context.Context, format Format, typeName string, fields int) {
	capitan.Emit(ctx, SignalSchemaCreated,
		KeyFormat.Field(string(format)),
		KeyTypeName.Field(typeName),
		KeyFieldCount.Field(fields),
	)
}

// emitDecodeStart emits an event when a record decode begins.
func emitDecodeStart(ctx context.Context, format Format, typeName string) {
	capitan.Emit(ctx, SignalDecodeStart,
		KeyFormat.Field(string(format)),
		KeyTypeName.Field(typeName),
	)
}

// emitDecodeComplete emits an event when a record decode finishes.
func emitDecodeComplete(ctx context.Context, format Format, typeName string, duration time.Duration, items int, err error) {
	fields := []capitan.Field{
		KeyFormat.Field(string(format)),
		KeyTypeName.Field(typeName),
		KeyDuration.Field(duration),
		KeyItemCount.Field(items),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDecodeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalDecodeComplete, fields...)
	}
}

// emitEncodeStart emits an event when a record encode begins.
func emitEncodeStart(ctx context.Context, format Format, typeName string) {
	capitan.Emit(ctx, SignalEncodeStart,
		KeyFormat.Field(string(format)),
		KeyTypeName.Field(typeName),
	)
}

// emitEncodeComplete emits an event when a record encode finishes.
func emitEncodeComplete(ctx context.Context, format Format, typeName string, size int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyFormat.Field(string(format)),
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalEncodeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalEncodeComplete, fields...)
	}
}

// emitUnknownLengthItem emits an event when a record decode meets an
// unknown-length item.
func emitUnknownLengthItem(ctx context.Context, typeName string, tag Tag) {
	capitan.Emit(ctx, SignalUnknownLengthItem,
		KeyTypeName.Field(typeName),
		KeyTag.Field(tag.String()),
	)
}

// emitLargeItem emits an event when a record decode meets a large item.
func emitLargeItem(ctx context.Context, typeName string, tag Tag, length string) {
	capitan.Emit(ctx, SignalLargeItem,
		KeyTypeName.Field(typeName),
		KeyTag.Field(tag.String()),
		KeyLength.Field(length),
	)
}
