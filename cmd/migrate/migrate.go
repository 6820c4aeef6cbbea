package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"docindex-platform/internal/auth"
	"docindex-platform/internal/catalog"
	"docindex-platform/internal/config"
	"docindex-platform/internal/indexmgr"
	"docindex-platform/internal/lock"
	"docindex-platform/internal/logger"
	"docindex-platform/internal/queue"

	"go.mongodb.org/mongo-driver/mongo"
)

func usage() {
	fmt.Println("Usage: go run ./cmd/migrate <command> [args]")
	fmt.Println("Commands:")
	fmt.Println("  ensure-indexes                    - Create the collection indexes the services rely on")
	fmt.Println("  lock-status                       - Show the reindex lock and the active search resource")
	fmt.Println("  force-unlock                      - Release a reindex lock left behind by a stalled run")
	fmt.Println("  list-resources                    - List search resources and mark the active one")
	fmt.Println("  list-runs [limit]                 - Show recent reindex runs")
	fmt.Println("  issue-token <user> <role> [ttl]   - Issue an API token (role: admin|operator, ttl e.g. 720h)")
	fmt.Println("  revoke-token <jti>                - Revoke an issued token")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch command {
	case "issue-token", "revoke-token":
		if err := runTokenCommand(ctx, cfg, command, os.Args[2:]); err != nil {
			log.Fatalf("%s failed: %v", command, err)
		}
		return
	}

	// Connect to MongoDB
	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())
	db := client.Database(cfg.DBName)

	switch command {
	case "ensure-indexes":
		if err := config.CreateIndexes(ctx, db); err != nil {
			log.Fatalf("Index creation failed: %v", err)
		}
		fmt.Println("Indexes created successfully!")

	case "lock-status":
		if err := lockStatus(ctx, cfg, db); err != nil {
			log.Fatalf("lock-status failed: %v", err)
		}

	case "force-unlock":
		guard := lock.NewGuard(lock.NewMongoStore(db), logger.Logger)
		before := guard.Check(ctx)
		if !before.Locked {
			fmt.Println("Reindex lock is not held; nothing to do.")
			return
		}
		if err := guard.Release(ctx); err != nil {
			log.Fatalf("force-unlock failed: %v", err)
		}
		fmt.Printf("Reindex lock released (held since %s).\n", before.StartedAt.UTC().Format(time.RFC3339))

	case "list-resources":
		if err := listResources(ctx, cfg, db); err != nil {
			log.Fatalf("list-resources failed: %v", err)
		}

	case "list-runs":
		limit := int64(10)
		if len(os.Args) > 2 {
			if _, err := fmt.Sscan(os.Args[2], &limit); err != nil || limit < 1 {
				log.Fatalf("Invalid limit: %s", os.Args[2])
			}
		}
		runs, err := queue.NewMongoRunStore(db).List(ctx, limit)
		if err != nil {
			log.Fatalf("list-runs failed: %v", err)
		}
		printJSON(runs)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func newManager(cfg *config.Config, db *mongo.Database) *indexmgr.Manager {
	return indexmgr.New(db, indexmgr.Options{
		VectorSearchEnabled: cfg.VectorSearchEnabled,
		VectorDimensions:    cfg.VectorDimensions,
	}, logger.Logger)
}

func lockStatus(ctx context.Context, cfg *config.Config, db *mongo.Database) error {
	st := lock.NewGuard(lock.NewMongoStore(db), logger.Logger).Check(ctx)
	active, err := newManager(cfg, db).ActiveResource(ctx)
	if err != nil {
		return err
	}
	eligible, err := catalog.New(db, cfg.ExcludedContentTypes).Count(ctx)
	if err != nil {
		return err
	}

	printJSON(map[string]any{
		"lock":               st,
		"active_resource":    active,
		"eligible_documents": eligible,
	})
	return nil
}

func listResources(ctx context.Context, cfg *config.Config, db *mongo.Database) error {
	mgr := newManager(cfg, db)
	resources, err := mgr.List(ctx)
	if err != nil {
		return err
	}
	active, err := mgr.ActiveResource(ctx)
	if err != nil {
		return err
	}

	for _, r := range resources {
		marker := " "
		if r.ID == active {
			marker = "*"
		}
		fmt.Printf("%s %-28s collection=%s created=%s\n", marker, r.ID, r.Collection, r.CreatedAt.UTC().Format(time.RFC3339))
	}
	if len(resources) == 0 {
		fmt.Println("No search resources yet.")
	}
	return nil
}

func runTokenCommand(ctx context.Context, cfg *config.Config, command string, args []string) error {
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	tokens, err := auth.NewTokenService(cfg.AccessSecret, rdb)
	if err != nil {
		return err
	}

	if command == "revoke-token" {
		if len(args) != 1 {
			return fmt.Errorf("usage: revoke-token <jti>")
		}
		if err := tokens.Revoke(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("Token revoked.")
		return nil
	}

	if len(args) < 2 {
		return fmt.Errorf("usage: issue-token <user> <role> [ttl]")
	}
	role := args[1]
	if role != auth.RoleAdmin && role != auth.RoleOperator {
		return fmt.Errorf("unknown role %q", role)
	}
	ttl := 30 * 24 * time.Hour
	if len(args) > 2 {
		if ttl, err = time.ParseDuration(args[2]); err != nil {
			return fmt.Errorf("invalid ttl: %w", err)
		}
	}

	token, claims, err := tokens.Issue(ctx, args[0], role, ttl)
	if err != nil {
		return err
	}
	printJSON(map[string]any{
		"token":      token,
		"jti":        claims.ID,
		"user_id":    claims.UserID,
		"role":       claims.Role,
		"expires_at": claims.ExpiresAt.Time.UTC().Format(time.RFC3339),
	})
	return nil
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
