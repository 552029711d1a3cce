// Package mqtt 現場 Andon 通知：NG 或帶變化點的提交發佈到看板 topic
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"ruiquan-inspection/internal/config"
	"ruiquan-inspection/internal/domain"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// AndonNotifier 把需要現場注意的巡檢列丟到 MQTT topic
// 通知是 best-effort：broker 掛了只記 log，不影響提交流程
type AndonNotifier struct {
	client pahomqtt.Client
	topic  string
	logger *zap.Logger
}

// andonMessage 看板端消費的 payload
type andonMessage struct {
	Timestamp      string `json:"timestamp"`
	Model          string `json:"model"`
	PartNo         string `json:"part_no"`
	PartName       string `json:"part_name"`
	InspectionType string `json:"inspection_type"`
	Result         string `json:"result"`
	ChangePoint    string `json:"change_point,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
}

func NewAndonNotifier(cfg *config.MQTTConfig, logger *zap.Logger) (*AndonNotifier, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := pahomqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &AndonNotifier{client: client, topic: cfg.Topic, logger: logger}, nil
}

// NotifySubmission 發佈一列巡檢結果（QoS 1，不保留）
func (n *AndonNotifier) NotifySubmission(ctx context.Context, rec domain.InspectionRecord) {
	payload, err := json.Marshal(andonMessage{
		Timestamp:      rec.Timestamp,
		Model:          rec.Model,
		PartNo:         rec.PartNo,
		PartName:       rec.PartName,
		InspectionType: rec.InspectionType,
		Result:         rec.Result,
		ChangePoint:    rec.ChangePoint,
		ImageURL:       rec.Image,
	})
	if err != nil {
		n.logger.Error("failed to marshal andon message", zap.Error(err))
		return
	}

	token := n.client.Publish(n.topic, 1, false, payload)
	token.Wait()
	if token.Error() != nil {
		n.logger.Warn("andon publish failed",
			zap.String("topic", n.topic),
			zap.String("part_no", rec.PartNo),
			zap.Error(token.Error()),
		)
		return
	}

	n.logger.Info("andon notification published",
		zap.String("topic", n.topic),
		zap.String("part_no", rec.PartNo),
		zap.String("result", rec.Result),
	)
}

// Close 斷開 broker 連線
func (n *AndonNotifier) Close() {
	n.client.Disconnect(250)
}

// IsConnected 健康檢查用
func (n *AndonNotifier) IsConnected() bool {
	return n.client.IsConnected()
}
