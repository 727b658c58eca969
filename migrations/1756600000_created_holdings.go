package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "holdings",
			"type": "base",
			"system": false,
			"fields": [
				{
					"name": "user_id",
					"type": "text",
					"required": true
				},
				{
					"name": "name",
					"type": "text",
					"required": false
				},
				{
					"name": "price",
					"type": "number",
					"required": true,
					"min": 0
				},
				{
					"name": "acquired_at",
					"type": "date",
					"required": true
				},
				{
					"name": "delivery_status",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": ["not_delivered", "delivered"]
				},
				{
					"name": "consignment_status",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": ["none", "pending_review", "active", "failed", "sold"]
				},
				{
					"name": "synced_at",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": true
				}
			],
			"indexes": [
				"CREATE INDEX idx_holdings_user ON holdings (user_id)",
				"CREATE INDEX idx_holdings_consignment ON holdings (consignment_status)"
			]
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("holdings")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
