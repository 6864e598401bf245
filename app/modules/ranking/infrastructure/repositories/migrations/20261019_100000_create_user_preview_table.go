package playermigrations

import (
	"context"
	"fmt"

	playerdb "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating user_preview table...")

		if _, err := db.NewCreateTable().Model((*playerdb.Player)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}

		_, err := db.NewRaw("CREATE INDEX IF NOT EXISTS idx_user_preview_player_rating ON user_preview (player_rating DESC)").Exec(ctx)
		if err != nil {
			return err
		}
		_, err = db.NewRaw("CREATE INDEX IF NOT EXISTS idx_user_preview_extra_col ON user_preview (extra_col DESC)").Exec(ctx)
		if err != nil {
			return err
		}

		fmt.Println("user_preview table created successfully!")
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping user_preview table...")

		if _, err := db.NewDropTable().Model((*playerdb.Player)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}

		fmt.Println("user_preview table dropped successfully!")
		return nil
	})
}
