package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vietddude/snap2pass/internal/core/domain"
	"github.com/vietddude/snap2pass/internal/infra/api"
	"github.com/vietddude/snap2pass/internal/infra/api/retry"
	"github.com/vietddude/snap2pass/internal/trial"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found")
	}

	apiKey := os.Getenv("SNAP2PASS_API_KEY")
	if apiKey == "" {
		log.Fatalf("SNAP2PASS_API_KEY is not set")
	}
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s PHOTO [document_id]", os.Args[0])
	}
	documentID := "us_passport"
	if len(os.Args) > 2 {
		documentID = os.Args[2]
	}

	ref, err := domain.ParseDocumentID(documentID)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// 1. Create client
	client, err := api.NewClient(api.Config{
		APIKey:  apiKey,
		Timeout: 60 * time.Second,
	}, retry.DefaultPolicy)
	if err != nil {
		log.Fatal(err)
	}

	// 2. Submit, resubmitting until validation passes (up to 3 trials)
	tracker := trial.New(client)
	state, res, err := tracker.Run(ctx, "", domain.PhotoSubmission{
		Source: os.Args[1],
		Spec:   domain.DocumentSpec{Named: &ref},
	}, trial.RunOptions{})
	if err != nil {
		log.Fatal(err)
	}

	// 3. Report
	for _, rec := range state.History {
		o := rec.Outcome
		fmt.Printf("trial %d: %s %s (attempts=%d)\n", rec.Trial, o.Kind, o.Code(), rec.Attempts)
		if o.Success != nil {
			for _, e := range o.Success.Errors {
				fmt.Printf("  - %s\n", e)
			}
		}
	}
	if err := res.Err(); err != nil {
		log.Fatalf("photo not processed: %v", err)
	}
	fmt.Printf("request %s finished in phase %s\n", state.RequestID, state.Phase)
}
