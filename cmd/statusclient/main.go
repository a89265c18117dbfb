// Command statusclient queries a running transcriber or analyzer over gRPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"

	grpcapi "speech-to-data/internal/api/grpc"
)

func main() {
	addr := flag.String("server", "localhost:50051", "gRPC server address")
	timeout := flag.Duration("timeout", 5*time.Second, "Request timeout")
	flag.Parse()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	health, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: grpcapi.ServiceName})
	if err != nil {
		log.Fatalf("Health check failed: %v", err)
	}
	log.Printf("Health: %s", health.Status)

	st, err := grpcapi.FetchStatus(ctx, conn)
	if err != nil {
		log.Fatalf("Status call failed: %v", err)
	}
	out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(st)
	if err != nil {
		log.Fatalf("Failed to encode status: %v", err)
	}
	fmt.Println(string(out))
}
