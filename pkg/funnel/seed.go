package funnel

import (
	"context"

	"github.com/google/uuid"

	"github.com/ojmachado/leadflow/pkg/models"
	"github.com/ojmachado/leadflow/pkg/persistence"
)

// PostPublishedTrigger fires when a new blog post is published.
const PostPublishedTrigger = "new_post_published"

// SeedPostPublishedFunnel creates the default post-distribution funnel:
// WhatsApp alert, 24h delay, then a follow-up email. It also stores the
// WhatsApp template the first node references.
func SeedPostPublishedFunnel(ctx context.Context, store persistence.Persistence) (*models.Funnel, error) {
	templateID := uuid.New().String()
	whatsappNodeID := uuid.New().String()
	delayNodeID := uuid.New().String()
	emailNodeID := uuid.New().String()

	err := store.SaveTemplate(ctx, &models.MessageTemplate{
		ID:      templateID,
		Title:   "Notificação: Novo Post",
		Content: "🚀 *Novidade no Blog!*\n\nAcabei de publicar o artigo: \"{{post_title}}\"\n\nConfira agora mesmo: {{post_url}}",
		Type:    "text",
	})
	if err != nil {
		return nil, err
	}

	startNodeID := whatsappNodeID
	funnel := &models.Funnel{
		ID:       uuid.New().String(),
		Name:     "Automação: Distribuição de Novos Posts",
		Trigger:  PostPublishedTrigger,
		IsActive: true,
		Nodes: []*models.FunnelNode{
			{
				ID:       whatsappNodeID,
				Type:     models.NodeTypeWhatsApp,
				Position: models.Position{X: 100, Y: 150},
				Data: models.WhatsAppData{
					TemplateID:    templateID,
					TemplateTitle: "WA: Alerta Post",
					CustomTitle:   "Zap: Novo Post",
				},
				NextNodeID: &delayNodeID,
			},
			{
				ID:       delayNodeID,
				Type:     models.NodeTypeDelay,
				Position: models.Position{X: 350, Y: 150},
				Data: models.DelayData{
					Hours:       models.DefaultDelayHours,
					CustomTitle: "Aguardar 24h",
				},
				NextNodeID: &emailNodeID,
			},
			{
				ID:       emailNodeID,
				Type:     models.NodeTypeEmail,
				Position: models.Position{X: 600, Y: 150},
				Data: models.EmailData{
					Subject:     "🔥 Novo conteúdo: {{post_title}}",
					Content:     "Olá {{name}}, tem post novo no blog: <a href=\"{{post_url}}\">{{post_title}}</a>",
					CustomTitle: "Email: Novo Post",
				},
			},
		},
		StartNodeID: &startNodeID,
	}

	err = store.SaveFunnel(ctx, funnel)
	if err != nil {
		return nil, err
	}

	return funnel, nil
}
