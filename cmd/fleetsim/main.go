// Command fleetsim runs assignment rounds over a YAML scenario and logs the outcome.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"fleetnav/internal/config"
)

func main() {
	var (
		scenario = flag.String("scenario", os.Getenv("FLEET_SCENARIO"), "scenario YAML file (default: built-in 10x10 demo)")
		policy   = flag.String("policy", "", "assignment policy: greedy or optimal (overrides scenario)")
		rounds   = flag.Int("rounds", 1, "assignment rounds to run")
		dump     = flag.Bool("dump", false, "print the effective scenario as YAML and exit")
	)
	flag.Parse()
	log.SetFlags(0)

	sc, err := config.LoadScenario(*scenario)
	if err != nil {
		log.Fatalf("load scenario: %v", err)
	}
	if err := sc.ApplyEnv(); err != nil {
		log.Fatalf("env: %v", err)
	}
	if *policy != "" {
		sc.Policy = *policy
	}
	if *dump {
		out, err := sc.Marshal()
		if err != nil {
			log.Fatalf("marshal: %v", err)
		}
		_, _ = os.Stdout.Write(out)
		return
	}

	sm, err := sc.Build()
	if err != nil {
		log.Fatalf("build scenario: %v", err)
	}
	g := sm.Grid()
	log.Printf("grid %dx%d, %d obstacles, %d robots, %d orders", g.Width(), g.Height(), len(g.Obstacles()), len(sm.Robots()), len(sm.Pending()))

	ctx := context.Background()
	for i := 1; i <= *rounds; i++ {
		res, err := sm.AssignOrders(ctx)
		if err != nil {
			log.Fatalf("round %d: %v", i, err)
		}
		log.Printf("round %d (%s): %d assigned, total cost %d, %d cells expanded", i, res.Policy, len(res.Assignments), res.TotalCost(), res.Stats.Expanded)
		for _, p := range res.Sorted() {
			log.Printf("  robot %d -> order %d at %v cost %d path %v", p.RobotID, p.Order.ID, p.Order.Destination, p.Cost(), p.Path)
		}
		for _, o := range res.Pending {
			log.Printf("  order %d at %v pending", o.ID, o.Destination)
		}
		if len(res.UnassignedRobots) > 0 {
			log.Printf("  idle robots %v", res.UnassignedRobots)
		}
		if len(sm.Pending()) == 0 {
			break
		}
	}
	for _, r := range sm.Robots() {
		log.Printf("robot %d at %v charge %d odometer %d", r.ID, r.Position, r.Charge, r.Odometer)
	}
}
