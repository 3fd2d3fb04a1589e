/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Warp Attendance Engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Seed the demo org directory
  4. Wire ledger service, workflow, and aggregation engine
  5. Start the accrual scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: attendance.db)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/attendance.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

ENVIRONMENT:
  No environment variables currently. All config via flags.
  Future: DATABASE_URL, PORT, LOG_LEVEL

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/attendance-engine/aggregate"
	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/calendar"
	"github.com/warp/attendance-engine/ledger"
	"github.com/warp/attendance-engine/org"
	"github.com/warp/attendance-engine/store/sqlite"
	"github.com/warp/attendance-engine/workflow"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "attendance.db", "SQLite database path")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Demo org directory. Production deployments replace this with their
	// own Directory/Resolver implementations.
	directory := seedDirectory()

	// Wire core services
	clock := calendar.System()
	led := ledger.NewService(store, clock)
	wf := workflow.New(store, led, directory, directory, clock)
	engine := aggregate.New(store, store)

	handler := api.NewHandler(led, wf, engine, store, directory)

	// Background accrual / annual reset
	scheduler := api.NewLedgerScheduler(led, directory, clock)
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// seedDirectory builds a small demo organization: one division, two teams,
// a division manager, a team leader, and a project manager whose project
// spans the engineering team.
func seedDirectory() *org.Static {
	s := org.NewStatic()

	s.AddEmployee(org.Employee{ID: "emp-alice", Name: "Alice Nguyen", Active: true, DivisionID: "div-eng", TeamID: "team-backend"})
	s.AddEmployee(org.Employee{ID: "emp-bob", Name: "Bob Tran", Active: true, DivisionID: "div-eng", TeamID: "team-backend"})
	s.AddEmployee(org.Employee{ID: "emp-carol", Name: "Carol Le", Active: true, DivisionID: "div-eng", TeamID: "team-frontend"})
	s.AddEmployee(org.Employee{ID: "emp-david", Name: "David Pham", Active: true, DivisionID: "div-ops", TeamID: "team-support"})

	s.AddEmployee(org.Employee{ID: "mgr-erin", Name: "Erin Vo", Active: true, DivisionID: "div-eng", TeamID: "team-backend"})
	s.Assign("mgr-erin", org.Role{Name: "division-manager", Scope: org.ScopeDivision, ScopeID: "div-eng"})

	s.AddEmployee(org.Employee{ID: "lead-frank", Name: "Frank Do", Active: true, DivisionID: "div-eng", TeamID: "team-backend"})
	s.Assign("lead-frank", org.Role{Name: "team-leader", Scope: org.ScopeTeam, ScopeID: "team-backend"})

	s.AddEmployee(org.Employee{ID: "pm-grace", Name: "Grace Ho", Active: true, DivisionID: "div-ops", TeamID: "team-support"})
	s.Assign("pm-grace", org.Role{Name: "project-manager", Scope: org.ScopeProject, ScopeID: "proj-atlas"})
	s.SetManagedTeams("pm-grace", "team-backend", "team-frontend")

	s.AddEmployee(org.Employee{ID: "admin-root", Name: "System Admin", Active: true})
	s.Assign("admin-root", org.Role{Name: "admin", Scope: org.ScopeGlobal})

	return s
}
