package trace

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TransactionHeader carries the transaction id back to HTTP clients
const TransactionHeader = "X-Transaction-ID"

// Recorder receives transactions once they have ended
type Recorder interface {
	Record(txn *Transaction)
}

// RecorderFunc adapts a function to the Recorder interface
type RecorderFunc func(txn *Transaction)

// Record calls f(txn)
func (f RecorderFunc) Record(txn *Transaction) {
	f(txn)
}

// begin starts a transaction that is handed to rec when it ends
func begin(name string, rec Recorder) (*Transaction, error) {
	var opts []Option
	if rec != nil {
		opts = append(opts, OnEnd(rec.Record))
	}
	txn := NewTransaction(name, opts...)
	if err := txn.Start(); err != nil {
		return nil, err
	}
	return txn, nil
}

// finish ends txn. A handler that leaked open scopes produces a transaction
// that is logged and dropped.
func finish(txn *Transaction, logger *zap.Logger) {
	if err := txn.End(); err != nil {
		logger.Warn("dropping transaction with broken trace nesting",
			zap.String("transaction_id", txn.ID()),
			zap.String("transaction", txn.Name()),
			zap.Error(err),
		)
	}
}

// recordPanic marks txn as failed by a panic and closes the nodes the
// panic unwound past, so the transaction can still end.
func recordPanic(txn *Transaction, recovered any) {
	txn.SetAttribute("error", fmt.Sprintf("panic: %v", recovered))
	txn.unwind()
}

// GinMiddleware begins one transaction per HTTP request. A panicking
// handler still produces a transaction; the panic is re-raised for
// gin.Recovery.
func GinMiddleware(rec Recorder, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		txn, err := begin("WebTransaction/"+c.Request.Method+" "+c.Request.URL.Path, rec)
		if err != nil {
			c.Next()
			return
		}

		txn.SetAttribute("http.method", c.Request.Method)
		txn.SetAttribute("http.url", c.Request.URL.String())
		txn.SetAttribute("http.host", c.Request.Host)

		c.Request = c.Request.WithContext(NewContext(c.Request.Context(), txn))
		c.Header(TransactionHeader, txn.ID())

		defer func() {
			recovered := recover()

			if route := c.FullPath(); route != "" {
				txn.SetName("WebTransaction/" + c.Request.Method + " " + route)
			}
			code := c.Writer.Status()
			switch {
			case recovered != nil:
				code = http.StatusInternalServerError
				recordPanic(txn, recovered)
			case len(c.Errors) > 0:
				txn.SetAttribute("error", c.Errors.Last().Error())
			}
			txn.SetAttribute("http.status", strconv.Itoa(code))

			finish(txn, logger)
			if recovered != nil {
				panic(recovered)
			}
		}()

		c.Next()
	}
}

// UnaryServerInterceptor begins one transaction per unary RPC
func UnaryServerInterceptor(rec Recorder, logger *zap.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		txn, startErr := begin("OtherTransaction/gRPC"+info.FullMethod, rec)
		if startErr != nil {
			return handler(ctx, req)
		}
		txn.SetAttribute("rpc.system", "grpc")
		txn.SetAttribute("rpc.method", info.FullMethod)

		defer func() {
			recovered := recover()
			endRPC(txn, err, recovered)
			finish(txn, logger)
			if recovered != nil {
				panic(recovered)
			}
		}()

		return handler(NewContext(ctx, txn), req)
	}
}

// StreamServerInterceptor begins one transaction per streaming RPC
func StreamServerInterceptor(rec Recorder, logger *zap.Logger) grpc.StreamServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		txn, startErr := begin("OtherTransaction/gRPC"+info.FullMethod, rec)
		if startErr != nil {
			return handler(srv, ss)
		}
		txn.SetAttribute("rpc.system", "grpc")
		txn.SetAttribute("rpc.method", info.FullMethod)
		txn.SetAttribute("rpc.streaming", "true")

		defer func() {
			recovered := recover()
			endRPC(txn, err, recovered)
			finish(txn, logger)
			if recovered != nil {
				panic(recovered)
			}
		}()

		return handler(srv, &tracedServerStream{
			ServerStream: ss,
			ctx:          NewContext(ss.Context(), txn),
		})
	}
}

// endRPC records the outcome of an RPC handler
func endRPC(txn *Transaction, err error, recovered any) {
	if recovered != nil {
		txn.SetAttribute("rpc.code", codes.Internal.String())
		recordPanic(txn, recovered)
		return
	}
	txn.SetAttribute("rpc.code", status.Code(err).String())
	if err != nil {
		txn.SetAttribute("error", err.Error())
	}
}

// tracedServerStream wraps grpc.ServerStream with the transaction context
type tracedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedServerStream) Context() context.Context {
	return s.ctx
}
