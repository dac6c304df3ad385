package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Creates the topic where cmd/ndvi publishes its results, and a subscription to consume them
func main() {
	ctx := context.Background()

	host := flag.String("host", "localhost:8085", "emulator host")
	projectID := flag.String("project", "geocube-emulator", "emulator project")
	eventsTopic := flag.String("topic", "ndvi-events", "topic of the ndvi results")
	eventsSubscription := flag.String("subscription", "ndvi-events", "subscription to the ndvi results")
	flag.Parse()

	os.Setenv("PUBSUB_EMULATOR_HOST", *host)

	log.Print("New client for project " + *projectID)
	client, err := pubsub.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatalf("pubsub.NewClient: %v", err)
	}
	defer client.Close()

	log.Print("Create Topic : " + *eventsTopic)
	topic, err := client.CreateTopic(ctx, *eventsTopic)
	if err != nil {
		if status.Code(err) != codes.AlreadyExists {
			log.Fatalf("pubsub.CreateTopic: %v", err)
		}
		topic = client.Topic(*eventsTopic)
	}

	log.Print("Create Subscription : " + *eventsSubscription)
	if _, err = client.CreateSubscription(ctx, *eventsSubscription, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 10 * time.Second,
	}); err != nil && status.Code(err) != codes.AlreadyExists {
		log.Fatalf("CreateSubscription: %v", err)
	}

	log.Print("Done!")
}
