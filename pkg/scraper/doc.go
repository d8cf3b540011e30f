// Package scraper wires a configured search run together.
//
// A Scraper owns everything one run needs: the Tumblr client, the call
// governor, the progress file and the view that reports to the operator.
// Run searches every configured theme, enriches the candidates, saves
// progress as it goes and exports whatever qualified, including after an
// interrupt.
//
// Usage:
//
//	cfg, err := config.Load("", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s, err := scraper.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := s.Run(ctx, scraper.RunOptions{Resume: true})
//
// Rate limiting:
//
// Every API call passes through a ratelimit.WindowGovernor. Close to the
// hourly budget the run sleeps until the hour rolls over; close to the daily
// budget it stops, saves and exports. Resume the next day with Resume set.
package scraper
