package bot

import (
	"context"
	"log"

	"github.com/google/uuid"
)

type ridKey struct{}

// withRID tags ctx with a fresh request id for one update.
func withRID(ctx context.Context) context.Context {
	return context.WithValue(ctx, ridKey{}, uuid.NewString())
}

func logf(ctx context.Context, level, format string, args ...interface{}) {
	rid, _ := ctx.Value(ridKey{}).(string)
	if rid == "" {
		log.Printf("["+level+"] "+format, args...)
		return
	}
	log.Printf("["+level+"] rid="+rid+" "+format, args...)
}
