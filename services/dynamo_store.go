package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"matchroom_server/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoStore implements Store on top of DynamoService.
//
// Tables:
//
//	Rooms            PK id               GSI code-index (code)
//	RoomCodes        PK code
//	RoomParticipants PK roomId SK userKey GSI userId-index (userId, timestamp)
//	Matches          PK id               GSI roomId-index (roomId, timestamp)
//	UserMatches      PK userId SK sortKey
type DynamoStore struct {
	Dynamo *DynamoService
}

func NewDynamoStore(dynamo *DynamoService) *DynamoStore {
	return &DynamoStore{Dynamo: dynamo}
}

var _ Store = (*DynamoStore)(nil)

func stringKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{name: &types.AttributeValueMemberS{Value: value}}
}

func (s *DynamoStore) CreateRoom(ctx context.Context, room *models.Room) error {
	err := s.Dynamo.PutItem(ctx, models.RoomsTable, room, "attribute_not_exists(id)", nil, nil)
	if IsConditionalCheckFailed(err) {
		return ErrRoomExists
	}
	return err
}

func (s *DynamoStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	if err := s.Dynamo.GetItem(ctx, models.RoomsTable, stringKey("id", roomID), &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *DynamoStore) GetRooms(ctx context.Context, roomIDs []string) ([]models.Room, error) {
	seen := make(map[string]struct{}, len(roomIDs))
	keys := make([]map[string]types.AttributeValue, 0, len(roomIDs))
	for _, id := range roomIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, stringKey("id", id))
	}
	if len(keys) == 0 {
		return nil, nil
	}

	items, err := s.Dynamo.BatchGetItems(ctx, models.RoomsTable, keys)
	if err != nil {
		return nil, err
	}
	var rooms []models.Room
	if err := attributevalue.UnmarshalListOfMaps(items, &rooms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rooms: %w", err)
	}
	return rooms, nil
}

func (s *DynamoStore) QueryRoomsByCode(ctx context.Context, code string) ([]models.Room, error) {
	items, err := s.Dynamo.QueryItemsWithIndex(ctx, models.RoomsTable, models.RoomCodeIndex,
		"#code = :code",
		map[string]types.AttributeValue{":code": &types.AttributeValueMemberS{Value: code}},
		map[string]string{"#code": "code"},
		0, false)
	if err != nil {
		return nil, err
	}
	return unmarshalRooms(items)
}

func (s *DynamoStore) ScanRoomsByCode(ctx context.Context, code string) ([]models.Room, error) {
	items, err := s.Dynamo.ScanWithFilter(ctx, models.RoomsTable,
		"#code = :code",
		map[string]string{"#code": "code"},
		map[string]types.AttributeValue{":code": &types.AttributeValueMemberS{Value: code}})
	if err != nil {
		return nil, err
	}
	return unmarshalRooms(items)
}

func unmarshalRooms(items []map[string]types.AttributeValue) ([]models.Room, error) {
	var rooms []models.Room
	if err := attributevalue.UnmarshalListOfMaps(items, &rooms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rooms: %w", err)
	}
	return rooms, nil
}

// ReserveCode claims a code unless a reservation that is still live holds it.
func (s *DynamoStore) ReserveCode(ctx context.Context, reservation *models.RoomCode, now time.Time) error {
	err := s.Dynamo.PutItem(ctx, models.RoomCodesTable, reservation,
		"attribute_not_exists(#code) OR #expiresAt <= :now",
		map[string]string{"#code": "code", "#expiresAt": "expiresAt"},
		map[string]types.AttributeValue{":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)}})
	if IsConditionalCheckFailed(err) {
		return ErrCodeTaken
	}
	return err
}

// ReleaseCode deletes the reservation unless another room has claimed the code since.
func (s *DynamoStore) ReleaseCode(ctx context.Context, code, roomID string) error {
	err := s.Dynamo.DeleteItem(ctx, models.RoomCodesTable, stringKey("code", code),
		"#roomId = :roomId",
		map[string]string{"#roomId": "roomId"},
		map[string]types.AttributeValue{":roomId": &types.AttributeValueMemberS{Value: roomID}})
	if IsConditionalCheckFailed(err) {
		return nil
	}
	return err
}

func (s *DynamoStore) PutParticipation(ctx context.Context, p *models.Participation) error {
	return s.Dynamo.PutItem(ctx, models.ParticipantsTable, p, "", nil, nil)
}

func (s *DynamoStore) QueryParticipations(ctx context.Context, roomID string) ([]models.Participation, error) {
	items, err := s.Dynamo.QueryAllItems(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.Dynamo.Table(models.ParticipantsTable)),
		KeyConditionExpression: aws.String("roomId = :roomId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":roomId": &types.AttributeValueMemberS{Value: roomID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	return unmarshalParticipations(items)
}

func (s *DynamoStore) QueryPositiveVotes(ctx context.Context, roomID, candidateID string) ([]models.Participation, error) {
	items, err := s.Dynamo.QueryAllItems(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.Dynamo.Table(models.ParticipantsTable)),
		KeyConditionExpression: aws.String("roomId = :roomId"),
		FilterExpression:       aws.String("#candidateId = :candidateId AND #vote = :yes AND #isParticipation = :no"),
		ExpressionAttributeNames: map[string]string{
			"#candidateId":     "candidateId",
			"#vote":            "vote",
			"#isParticipation": "isParticipation",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":roomId":      &types.AttributeValueMemberS{Value: roomID},
			":candidateId": &types.AttributeValueMemberS{Value: candidateID},
			":yes":         &types.AttributeValueMemberBOOL{Value: true},
			":no":          &types.AttributeValueMemberBOOL{Value: false},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	return unmarshalParticipations(items)
}

func (s *DynamoStore) QueryParticipationsByUser(ctx context.Context, userID string) ([]models.Participation, error) {
	items, err := s.Dynamo.QueryItemsWithIndex(ctx, models.ParticipantsTable, models.UserIDIndex,
		"userId = :userId",
		map[string]types.AttributeValue{":userId": &types.AttributeValueMemberS{Value: userID}},
		nil, 0, true)
	if err != nil {
		return nil, err
	}
	return unmarshalParticipations(items)
}

func (s *DynamoStore) ScanParticipationsByUser(ctx context.Context, userID string) ([]models.Participation, error) {
	items, err := s.Dynamo.ScanWithFilter(ctx, models.ParticipantsTable,
		"userId = :userId", nil,
		map[string]types.AttributeValue{":userId": &types.AttributeValueMemberS{Value: userID}})
	if err != nil {
		return nil, err
	}
	return unmarshalParticipations(items)
}

func unmarshalParticipations(items []map[string]types.AttributeValue) ([]models.Participation, error) {
	var records []models.Participation
	if err := attributevalue.UnmarshalListOfMaps(items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participations: %w", err)
	}
	return records, nil
}

func (s *DynamoStore) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	var match models.Match
	if err := s.Dynamo.GetItem(ctx, models.MatchesTable, stringKey("id", matchID), &match); err != nil {
		return nil, err
	}
	return &match, nil
}

// CreateMatch writes the match only if no record exists for its id.
func (s *DynamoStore) CreateMatch(ctx context.Context, match *models.Match) error {
	match.SortKey = models.MatchSortKey(match)
	err := s.Dynamo.PutItem(ctx, models.MatchesTable, match, "attribute_not_exists(id)", nil, nil)
	if IsConditionalCheckFailed(err) {
		return ErrMatchExists
	}
	return err
}

func (s *DynamoStore) PutUserMatches(ctx context.Context, rows []models.UserMatch) error {
	requests := make([]types.WriteRequest, 0, len(rows))
	for i := range rows {
		item, err := attributevalue.MarshalMap(rows[i])
		if err != nil {
			return fmt.Errorf("failed to marshal user match: %w", err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	return s.Dynamo.BatchWriteItems(ctx, models.UserMatchesTable, requests)
}

func (s *DynamoStore) QueryMatchesByRoom(ctx context.Context, roomID string, limit int32) ([]models.Match, error) {
	items, err := s.Dynamo.QueryItemsWithIndex(ctx, models.MatchesTable, models.MatchRoomIndex,
		"roomId = :roomId",
		map[string]types.AttributeValue{":roomId": &types.AttributeValueMemberS{Value: roomID}},
		nil, limit, false)
	if err != nil {
		return nil, err
	}
	return unmarshalMatches(items)
}

func (s *DynamoStore) ScanMatchesByRoom(ctx context.Context, roomID string) ([]models.Match, error) {
	items, err := s.Dynamo.ScanWithFilter(ctx, models.MatchesTable,
		"roomId = :roomId", nil,
		map[string]types.AttributeValue{":roomId": &types.AttributeValueMemberS{Value: roomID}})
	if err != nil {
		return nil, err
	}
	return unmarshalMatches(items)
}

func (s *DynamoStore) QueryUserMatches(ctx context.Context, userID string, limit int32) ([]models.Match, error) {
	items, err := s.Dynamo.QueryItemsWithIndex(ctx, models.UserMatchesTable, "",
		"userId = :userId",
		map[string]types.AttributeValue{":userId": &types.AttributeValueMemberS{Value: userID}},
		nil, limit, true)
	if err != nil {
		return nil, err
	}
	var rows []models.UserMatch
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user matches: %w", err)
	}
	matches := make([]models.Match, 0, len(rows))
	for i := range rows {
		matches = append(matches, rows[i].Match())
	}
	return matches, nil
}

func (s *DynamoStore) ScanMatchesByUser(ctx context.Context, userID string) ([]models.Match, error) {
	items, err := s.Dynamo.ScanWithFilter(ctx, models.MatchesTable,
		"contains(matchedUsers, :userId)", nil,
		map[string]types.AttributeValue{":userId": &types.AttributeValueMemberS{Value: userID}})
	if err != nil {
		return nil, err
	}
	return unmarshalMatches(items)
}

func unmarshalMatches(items []map[string]types.AttributeValue) ([]models.Match, error) {
	var matches []models.Match
	if err := attributevalue.UnmarshalListOfMaps(items, &matches); err != nil {
		return nil, fmt.Errorf("failed to unmarshal matches: %w", err)
	}
	return matches, nil
}

func (s *DynamoStore) IndexReady(ctx context.Context, index string) (bool, error) {
	switch index {
	case models.RoomCodeIndex:
		return s.Dynamo.IndexActive(ctx, models.RoomsTable, models.RoomCodeIndex)
	case models.UserIDIndex:
		return s.Dynamo.IndexActive(ctx, models.ParticipantsTable, models.UserIDIndex)
	case models.MatchRoomIndex:
		return s.Dynamo.IndexActive(ctx, models.MatchesTable, models.MatchRoomIndex)
	case models.UserMatchesTable:
		return s.Dynamo.IndexActive(ctx, models.UserMatchesTable, "")
	default:
		return false, fmt.Errorf("unknown index %q", index)
	}
}
