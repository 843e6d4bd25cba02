package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"veiled-verse/internal/auth"
	"veiled-verse/internal/db"
	"veiled-verse/internal/docstore"
	"veiled-verse/internal/models"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	database, err := db.NewDB(os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.InitSchema(); err != nil {
		log.Fatalf("failed to initialize schema: %v", err)
	}

	docs := docstore.NewPostgres(database)
	ctx := context.Background()

	fmt.Println("Seeding database...")

	users := []struct {
		email string
		name  string
		roles []auth.Role
	}{
		{"alice@example.com", "Alice", []auth.Role{auth.RoleReader, auth.RoleWriter}},
		{"bob@example.com", "Bob", []auth.Role{auth.RoleReader}},
		{"carol@example.com", "Carol", []auth.Role{auth.RoleModerator}},
		{"admin@example.com", "Admin", []auth.Role{auth.RoleAdmin}},
	}

	userIDs := make(map[string]string)
	for _, u := range users {
		id, err := seedUser(ctx, docs, u.email, u.name, "password123", u.roles)
		if err != nil {
			log.Printf("failed to create user %s: %v", u.email, err)
			continue
		}
		userIDs[u.email] = id
		fmt.Printf("Created user: %s (ID: %s)\n", u.email, id)
	}

	alice, ok := userIDs["alice@example.com"]
	if !ok {
		fmt.Println("Seeding completed!")
		return
	}

	stories := []models.Story{
		{
			Title:       "The Lantern Keeper",
			Description: "A lighthouse that only shines for ghosts.",
			Genre:       "fantasy",
			Tags:        []string{"ghosts", "sea"},
			Content:     "Every night at eleven, the lamp turned itself on.",
			Status:      models.StatusApproved,
		},
		{
			Title:       "Salt and Silence",
			Description: "Two sisters, one secret.",
			Genre:       "romance",
			Tags:        []string{"family"},
			Content:     "Mara never told anyone what she found in the cellar.",
			IsPaid:      true,
			Price:       100,
			Status:      models.StatusApproved,
		},
		{
			Title:   "Draft Without a Name",
			Genre:   "horror",
			Content: "It isn't finished yet.",
			Status:  models.StatusPending,
		},
	}

	now := time.Now().UTC()
	for i, st := range stories {
		st.AuthorID = alice
		st.AuthorName = "Alice"
		st.LikedBy = []string{}
		st.Ratings = []models.Rating{}
		st.CreatedAt = now.Add(-time.Duration(i) * time.Hour)
		st.UpdatedAt = st.CreatedAt

		doc, err := docstore.Encode(st)
		if err != nil {
			log.Printf("failed to encode story %q: %v", st.Title, err)
			continue
		}
		delete(doc, "id")
		id, err := docs.Create(ctx, docstore.CollectionStories, doc)
		if err != nil {
			log.Printf("failed to create story %q: %v", st.Title, err)
			continue
		}
		fmt.Printf("Created %s story: %s (ID: %s)\n", st.Status, st.Title, id)
	}

	fmt.Println("Seeding completed!")
}

// seedUser creates the user unless the email is already registered, in
// which case the existing id is returned.
func seedUser(ctx context.Context, docs docstore.Store, email, name, password string, roles []auth.Role) (string, error) {
	if claim, err := docs.Get(ctx, docstore.CollectionEmails, email); err == nil {
		if id, _ := claim["user_id"].(string); id != "" {
			return id, nil
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}

	user := models.User{
		ID:               uuid.New().String(),
		Email:            email,
		Name:             name,
		PasswordHash:     hash,
		Roles:            names,
		PurchasedStories: []string{},
		CreatedAt:        time.Now().UTC(),
	}
	doc, err := docstore.Encode(user)
	if err != nil {
		return "", err
	}
	delete(doc, "id")

	if err := docs.Set(ctx, docstore.CollectionUsers, user.ID, doc); err != nil {
		return "", err
	}
	if err := docs.Set(ctx, docstore.CollectionEmails, email, docstore.Document{"user_id": user.ID}); err != nil {
		return "", err
	}
	return user.ID, nil
}
