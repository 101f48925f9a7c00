package vision

import (
	"context"
)

type mockModel struct{}

func NewMockModel() Model {
	return &mockModel{}
}

func (m *mockModel) Complete(_ context.Context, prompt, _ string) (string, error) {
	return "With what I see, I think you should rest and stay hydrated.", nil
}
