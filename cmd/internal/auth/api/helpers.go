package authapi

import "vidra/cmd/identity"

func toAccountResponse(a identity.Account) accountResponse {
	return accountResponse{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		AvatarURL:   a.AvatarURL,
		CoverURL:    a.CoverURL,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toChannelResponse(p identity.ChannelProfile) channelResponse {
	return channelResponse{
		ID:                p.Account.ID,
		Username:          p.Account.Username,
		DisplayName:       p.Account.DisplayName,
		Email:             p.Account.Email,
		AvatarURL:         p.Account.AvatarURL,
		CoverURL:          p.Account.CoverURL,
		SubscriberCount:   p.SubscriberCount,
		SubscribedToCount: p.SubscribedToCount,
		IsSubscribed:      p.IsSubscribed,
	}
}

func toWatchEntryResponse(e identity.WatchEntry) watchEntryResponse {
	return watchEntryResponse{
		VideoID:         e.VideoID,
		Title:           e.Title,
		ThumbnailURL:    e.ThumbnailURL,
		DurationSeconds: e.DurationSeconds,
		Views:           e.Views,
		PublishedAt:     e.PublishedAt,
		WatchedAt:       e.WatchedAt,
		Owner: watchOwnerResponse{
			ID:          e.Owner.ID,
			Username:    e.Owner.Username,
			DisplayName: e.Owner.DisplayName,
			AvatarURL:   e.Owner.AvatarURL,
		},
	}
}
