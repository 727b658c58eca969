package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "ticket_wallets",
			"type": "base",
			"system": false,
			"fields": [
				{
					"name": "user_id",
					"type": "text",
					"required": true
				},
				{
					"name": "balance",
					"type": "number",
					"required": false,
					"min": 0,
					"onlyInt": true
				},
				{
					"name": "updated",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": true
				}
			],
			"indexes": [
				"CREATE UNIQUE INDEX idx_ticket_wallets_user ON ticket_wallets (user_id)"
			]
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("ticket_wallets")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
