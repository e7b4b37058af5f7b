package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/gokatarajesh/quizmind/internal/question"
)

// MaxGeneratedQuestions bounds a single generation request.
const MaxGeneratedQuestions = 100

// HistoryEntry is one past quiz as the model sees it.
type HistoryEntry struct {
	Topic             string  `json:"topic"`
	Score             float64 `json:"score"`
	QuestionsAnswered int     `json:"questionsAnswered"`
	TotalQuestions    int     `json:"totalQuestions"`
}

// DifficultyRequest carries the finished quiz's performance ratio (0..1).
type DifficultyRequest struct {
	Performance       float64
	CurrentDifficulty string
}

// DifficultyAdvice is the suggested level for the next quiz.
type DifficultyAdvice struct {
	SuggestedDifficulty string `json:"suggestedDifficulty"`
	Reason              string `json:"reason"`
}

// LearningPathRequest asks for study resources based on past quizzes.
type LearningPathRequest struct {
	History       []HistoryEntry
	LearningStyle string
	Topics        []string
}

// LearningResource is a suggested external study resource.
type LearningResource struct {
	Topic        string `json:"topic,omitempty"`
	ResourceName string `json:"resourceName"`
	ResourceLink string `json:"resourceLink"`
	Reason       string `json:"reason"`
}

// TrainingPlanRequest asks for a practice quiz plus resources.
type TrainingPlanRequest struct {
	Topic      string
	Count      int
	Difficulty string
}

// TrainingPlan is a generated practice quiz with study resources.
type TrainingPlan struct {
	Questions []question.Question `json:"questions"`
	Resources []LearningResource  `json:"suggested_resources"`
}

// QuizSuggestionRequest asks which catalog topics to play next.
type QuizSuggestionRequest struct {
	History []HistoryEntry
	Topics  []string
}

// QuizSuggestion names a topic worth replaying and why.
type QuizSuggestion struct {
	Topic  string `json:"topic"`
	Reason string `json:"reason"`
}

type generatedQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Difficulty    string   `json:"difficulty"`
}

func (g generatedQuestion) toQuestion() question.Question {
	return question.Question{
		Prompt:       strings.TrimSpace(g.Question),
		Options:      g.Options,
		CorrectIndex: g.CorrectAnswer,
		Difficulty:   strings.ToLower(strings.TrimSpace(g.Difficulty)),
		Source:       question.SourceAI,
	}
}

func convertQuestions(in []generatedQuestion) []question.Question {
	out := make([]question.Question, 0, len(in))
	for _, g := range in {
		out = append(out, g.toQuestion())
	}
	return out
}

const questionShape = `Each question must have exactly 4 options.
The "correctAnswer" field must be the index (0-3) of the correct option in the "options" array.
`

// GenerateQuiz implements question.Generator.
func (c *Client) GenerateQuiz(ctx context.Context, req question.GenerateRequest) ([]question.Question, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrSuggestionUnavailable)
	}
	if req.Count < 1 || req.Count > MaxGeneratedQuestions {
		return nil, fmt.Errorf("%w: question count must be within 1..%d", ErrSuggestionUnavailable, MaxGeneratedQuestions)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a quiz generation AI. Generate a quiz with %d questions about the topic: %q.\n", req.Count, topic)
	b.WriteString(questionShape)
	if req.Difficulty != "" {
		fmt.Fprintf(&b, "Every question should be of %q difficulty and its \"difficulty\" field set to %q.\n", req.Difficulty, req.Difficulty)
	} else {
		b.WriteString("Determine a suitable difficulty (\"easy\", \"medium\", or \"hard\") for each question based on the topic and question complexity.\n")
	}
	b.WriteString(`Return JSON only in the shape {"questions":[{"question":"string","options":["a","b","c","d"],"correctAnswer":0,"difficulty":"easy|medium|hard"}]}.`)

	var out struct {
		Questions []generatedQuestion `json:"questions"`
	}
	if err := c.generateJSON(ctx, "generate_quiz", b.String(), &out); err != nil {
		return nil, err
	}
	if len(out.Questions) == 0 {
		return nil, fmt.Errorf("%w: model returned zero questions", ErrSuggestionUnavailable)
	}
	return convertQuestions(out.Questions), nil
}

// TrainingPlan generates a practice quiz plus two or three study resources.
func (c *Client) TrainingPlan(ctx context.Context, req TrainingPlanRequest) (*TrainingPlan, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" || req.Count < 1 || req.Count > MaxGeneratedQuestions || !question.IsValidDifficulty(req.Difficulty) {
		return nil, fmt.Errorf("%w: invalid training plan request", ErrSuggestionUnavailable)
	}

	var b strings.Builder
	b.WriteString("You are an AI learning assistant. ")
	fmt.Fprintf(&b, "Generate a quiz with %d questions about the topic: %q.\n", req.Count, topic)
	fmt.Fprintf(&b, "The questions should be of %q difficulty and each \"difficulty\" field set to %q.\n", req.Difficulty, req.Difficulty)
	b.WriteString(questionShape)
	b.WriteString("In addition, provide a list of 2-3 suggested learning resources for the given topic and difficulty level. ")
	b.WriteString("These resources should be real, publicly accessible links. For each resource, provide a name, a valid URL, and a brief reason for the recommendation.\n")
	b.WriteString(`Return JSON only in the shape {"questions":[...],"suggestedResources":[{"resourceName":"string","resourceLink":"url","reason":"string"}]}.`)

	var out struct {
		Questions          []generatedQuestion `json:"questions"`
		SuggestedResources []LearningResource  `json:"suggestedResources"`
	}
	if err := c.generateJSON(ctx, "training_plan", b.String(), &out); err != nil {
		return nil, err
	}

	plan := &TrainingPlan{Resources: out.SuggestedResources}
	for _, q := range convertQuestions(out.Questions) {
		if q.Difficulty == "" {
			q.Difficulty = req.Difficulty
		}
		if q.Validate() != nil {
			continue
		}
		plan.Questions = append(plan.Questions, q)
	}
	if len(plan.Questions) == 0 {
		return nil, fmt.Errorf("%w: model returned no usable questions", ErrSuggestionUnavailable)
	}
	return plan, nil
}

// AdjustDifficulty suggests the next quiz's difficulty from a performance ratio.
func (c *Client) AdjustDifficulty(ctx context.Context, req DifficultyRequest) (*DifficultyAdvice, error) {
	current := req.CurrentDifficulty
	if !question.IsValidDifficulty(current) {
		current = question.DifficultyMedium
	}

	prompt := fmt.Sprintf(`You are an AI quiz master. A player has just finished a quiz with a performance score of %.2f, and the quiz was of %s difficulty. Your job is to adjust the difficulty for the next quiz, keeping in mind that the player should always be challenged but not overwhelmed.
Based on the player's performance, suggest a new difficulty level, which must be one of "easy", "medium", or "hard". Provide a short explanation for your decision in the "reason" field.
Return JSON only in the shape {"suggestedDifficulty":"easy|medium|hard","reason":"string"}.`, req.Performance, current)

	var advice DifficultyAdvice
	if err := c.generateJSON(ctx, "adjust_difficulty", prompt, &advice); err != nil {
		return nil, err
	}
	advice.SuggestedDifficulty = strings.ToLower(strings.TrimSpace(advice.SuggestedDifficulty))
	if !question.IsValidDifficulty(advice.SuggestedDifficulty) {
		return nil, fmt.Errorf("%w: unexpected difficulty label %q", ErrSuggestionUnavailable, advice.SuggestedDifficulty)
	}
	return &advice, nil
}

// SuggestLearningPaths recommends study resources from quiz history.
func (c *Client) SuggestLearningPaths(ctx context.Context, req LearningPathRequest) ([]LearningResource, error) {
	var b strings.Builder
	b.WriteString("You are an AI learning resource recommender. You will take a user's quiz history and performance data and return a list of suggested learning resources tailored to their needs.\n")
	writeHistory(&b, req.History)
	if req.LearningStyle != "" {
		fmt.Fprintf(&b, "Preferred Learning Style: %s\n", req.LearningStyle)
	}
	if len(req.Topics) > 0 {
		fmt.Fprintf(&b, "Available Topics: %s\n", strings.Join(req.Topics, ", "))
	}
	b.WriteString("Based on this information, suggest relevant and helpful learning resources.\n")
	b.WriteString(`Return JSON only in the shape {"suggestedResources":[{"topic":"string","resourceName":"string","resourceLink":"url","reason":"string"}]}.`)

	var out struct {
		SuggestedResources []LearningResource `json:"suggestedResources"`
	}
	if err := c.generateJSON(ctx, "learning_paths", b.String(), &out); err != nil {
		return nil, err
	}
	return out.SuggestedResources, nil
}

// SuggestQuizzes recommends topics to replay. Topics outside req.Topics are dropped.
func (c *Client) SuggestQuizzes(ctx context.Context, req QuizSuggestionRequest) ([]QuizSuggestion, error) {
	var b strings.Builder
	b.WriteString("You are an AI quiz recommender. You will take a user's quiz history and return a list of suggested quizzes tailored to their needs, focusing on areas where they need improvement.\n")
	writeHistory(&b, req.History)
	fmt.Fprintf(&b, "Available Topics: %s\n", strings.Join(req.Topics, ", "))
	b.WriteString("Suggest quizzes on topics where the user has performed poorly. Suggest only topics from the available topics.\n")
	b.WriteString(`Return JSON only in the shape {"suggestedQuizzes":[{"topic":"string","reason":"string"}]}.`)

	var out struct {
		SuggestedQuizzes []QuizSuggestion `json:"suggestedQuizzes"`
	}
	if err := c.generateJSON(ctx, "suggest_quizzes", b.String(), &out); err != nil {
		return nil, err
	}

	allowed := make(map[string]string, len(req.Topics))
	for _, t := range req.Topics {
		allowed[strings.ToLower(t)] = t
	}
	suggestions := make([]QuizSuggestion, 0, len(out.SuggestedQuizzes))
	for _, s := range out.SuggestedQuizzes {
		name, ok := allowed[strings.ToLower(strings.TrimSpace(s.Topic))]
		if !ok {
			continue
		}
		suggestions = append(suggestions, QuizSuggestion{Topic: name, Reason: s.Reason})
	}
	return suggestions, nil
}

func writeHistory(b *strings.Builder, history []HistoryEntry) {
	b.WriteString("Quiz History:\n")
	if len(history) == 0 {
		b.WriteString("- none yet\n")
		return
	}
	for _, h := range history {
		fmt.Fprintf(b, "- Topic: %s, Score: %.0f, Questions Answered: %d, Total Questions: %d\n",
			h.Topic, h.Score, h.QuestionsAnswered, h.TotalQuestions)
	}
}
