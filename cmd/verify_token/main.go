package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	transportgrpc "github.com/jebauza/VetFlow/internal/transport/grpc"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "token service address")
	token := flag.String("token", os.Getenv("VETFLOW_TOKEN"), "access token to check")
	permissions := flag.Bool("permissions", false, "also fetch the caller's effective permissions")
	flag.Parse()

	if *token == "" {
		log.Fatal("a token is required (-token or VETFLOW_TOKEN)")
	}

	fmt.Printf("Connecting to %s...\n", *addr)
	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	defer conn.Close()

	client := transportgrpc.NewTokenServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	verdict, err := client.VerifyToken(ctx, *token)
	if err != nil {
		log.Fatalf("VerifyToken failed: %v", err)
	}
	printJSON("VerifyToken", verdict)

	if !*permissions {
		return
	}
	perms, err := client.EffectivePermissions(ctx, *token)
	if err != nil {
		log.Fatalf("EffectivePermissions failed: %v", err)
	}
	printJSON("EffectivePermissions", perms)
}

func printJSON(label string, payload map[string]any) {
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		log.Fatalf("encode %s response: %v", label, err)
	}
	fmt.Printf("%s response:\n%s\n", label, out)
}
