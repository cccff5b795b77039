package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/visitrewards-backend/pkg/config"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub notification topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client publishes notification requests. The relay never creates topics or
// subscriptions; the delivery service owns them, so both are only checked.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// NewClient connects and verifies the notification topic exists. Setting
// PUBSUB_EMULATOR_HOST points it at a local emulator.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	switch {
	case strings.TrimSpace(gcp.ProjectID) == "":
		return nil, errProjectIDRequired
	case strings.TrimSpace(cfg.NotificationTopic) == "":
		return nil, errNoTopic
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, projectID: gcp.ProjectID, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topic":        cfg.NotificationTopic,
			"subscription": cfg.NotificationSubscription,
		}), "pubsub client initialized")
	}
	return c, nil
}

// CheckTopics reports the first topic that is missing or unreadable.
func (c *Client) CheckTopics(ctx context.Context, topics ...string) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	for _, topic := range topics {
		name := c.topicResourceName(topic)
		if name == "" {
			return errNoTopic
		}
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
		if err != nil {
			return describe(err, "topic", topic)
		}
	}
	return nil
}

func (c *Client) checkSubscription(ctx context.Context, name string) error {
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
		Subscription: c.subscriptionResourceName(name),
	})
	if err != nil {
		return describe(err, "subscription", name)
	}
	return nil
}

func describe(err error, kind, name string) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

// Publisher returns a publisher handle for the given topic ID or resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.topicResourceName(name)
	if fullName == "" {
		return nil
	}
	return c.client.Publisher(fullName)
}

// Ping checks the notification topic and, when configured, the delivery
// service's subscription.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.CheckTopics(ctx, c.notificationTopic()); err != nil {
		return err
	}
	if name := strings.TrimSpace(c.cfg.NotificationSubscription); name != "" {
		return c.checkSubscription(ctx, name)
	}
	return nil
}

func (c *Client) notificationTopic() string {
	if c == nil {
		return ""
	}
	return c.cfg.NotificationTopic
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) subscriptionResourceName(name string) string {
	return resourceName(c.projectID, "subscriptions", name)
}

func (c *Client) topicResourceName(name string) string {
	return resourceName(c.projectID, "topics", name)
}

// resourceName expands a short id into projects/<p>/<kind>/<id> and passes
// through names that are already fully qualified.
func resourceName(projectID, kind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", p, kind, n)
}
