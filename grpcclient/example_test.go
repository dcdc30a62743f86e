package grpcclient_test

import (
	"context"
	"fmt"
	"log"

	"github.com/AmmannChristian/go-authrelay/grpcclient"
	"github.com/AmmannChristian/go-authrelay/oauth2client"
	"github.com/AmmannChristian/go-authrelay/propagation"
)

// Example builds a connection whose RPCs forward the inbound caller's token.
func Example() {
	conn, err := grpcclient.NewBuilder().
		WithAddress("inventory.internal:9090").
		WithTokenSource(propagation.NewTokenPropagator()).
		Build(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	fmt.Println("gRPC connection configured")
	// Output: gRPC connection configured
}

// ExampleNewCredentials shows the metadata attached to a single RPC.
func ExampleNewCredentials() {
	source := oauth2client.TokenSourceFunc(func(context.Context) (oauth2client.Token, error) {
		return oauth2client.Token{Value: "example-token", Type: oauth2client.TokenTypeBearer}, nil
	})

	md, err := grpcclient.NewCredentials(source).GetRequestMetadata(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(md["authorization"])
	// Output: Bearer example-token
}
