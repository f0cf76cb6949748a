// Package admincli is a one-shot command line client for the store's admin
// gRPC endpoint.
package admincli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	gs "github.com/dmitrijs2005/fhirkeeper/internal/server/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var ErrUsage = errors.New("usage: admin [-a addr] clean | purge <batch-id> | next <counter> | read <logical-id>")

// Dial connects to the admin endpoint at addr without transport security.
func Dial(addr string) (gs.StoreAdminClient, io.Closer, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return gs.NewStoreAdminClient(conn), conn, nil
}

// Run executes a single command and prints its result to out.
func Run(ctx context.Context, c gs.StoreAdminClient, args []string, out io.Writer) error {
	if len(args) == 0 {
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "clean":
		if _, err := c.Clean(ctx, &emptypb.Empty{}); err != nil {
			return err
		}
		fmt.Fprintln(out, "store cleaned")

	case "purge":
		if len(rest) != 1 {
			return ErrUsage
		}
		n, err := c.PurgeBatch(ctx, wrapperspb.String(rest[0]))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "purged %d documents\n", n.GetValue())

	case "next":
		if len(rest) != 1 {
			return ErrUsage
		}
		v, err := c.NextSequence(ctx, wrapperspb.String(rest[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, v.GetValue())

	case "read":
		if len(rest) != 1 {
			return ErrUsage
		}
		doc, err := c.ReadCurrent(ctx, wrapperspb.String(rest[0]))
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(doc.AsMap(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))

	default:
		return ErrUsage
	}
	return nil
}
