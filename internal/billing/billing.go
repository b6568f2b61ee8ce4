// Package billing holds placeholder functions for future billing
// integrations.  Plan changes call ChargePlan so the integration point is
// already wired when a real provider lands.
package billing

import "log"

// ChargePlan pretends to charge the user for the new plan.
// TODO: integrate Stripe here once the billing account is provisioned.
func ChargePlan(userID, plan string) {
    log.Printf("billing: pretend charging user=%s for plan=%s", userID, plan)
}
