package stores_test

import (
	"context"
	"fmt"
	"log"

	"github.com/openfroyo/archetype/pkg/stores"
)

// ExampleOpen demonstrates opening a store and recording a generation run.
func ExampleOpen() {
	ctx := context.Background()
	store, err := stores.Open(ctx, stores.MemoryPath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	run := stores.NewRun(stores.RunKindGenerate, "org.apache.maven.archetypes:maven-archetype-quickstart:1.4")
	if err := store.CreateRun(ctx, run); err != nil {
		log.Fatal(err)
	}
	if err := store.FinishRun(ctx, run.ID, stores.RunCounts{Files: 4}, nil); err != nil {
		log.Fatal(err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(got.Status, got.Files)
	// Output: completed 4
}
